package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/Togather-Foundation/graphevents/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, ctx context.Context, repo *EventRepository, what string, offset time.Duration, tags ...string) *events.Event {
	t.Helper()
	event, err := repo.Create(ctx, events.CreateParams{
		What: what,
		Tags: tags,
		When: base.Add(offset),
		Data: "payload " + what,
	})
	require.NoError(t, err)
	return event
}

func countTagRows(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventID int64) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM event_tags WHERE event_id = $1`, eventID).Scan(&n))
	return n
}

func TestEventRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}

	created := seed(t, ctx, repo, "deploy", time.Hour, "web", "deploy", "web")
	require.NotZero(t, created.ID)
	require.Equal(t, []string{"web", "deploy", "web"}, created.Tags)
	require.Equal(t, 2, countTagRows(t, ctx, pool, created.ID))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "deploy", got.What)
	require.Equal(t, base.Add(time.Hour), got.When)
	require.Equal(t, "payload deploy", got.Data)

	_, err = repo.GetByID(ctx, created.ID+100)
	require.ErrorIs(t, err, events.ErrNotFound)
}

func TestEventRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}

	a := seed(t, ctx, repo, "a", 1*time.Hour, "deploy", "web")
	b := seed(t, ctx, repo, "b", 2*time.Hour, "deploy")
	c := seed(t, ctx, repo, "c", 3*time.Hour, "web", "db", "deploy")
	d := seed(t, ctx, repo, "d", 4*time.Hour)

	window := events.Filter{From: base, Until: base.Add(10 * time.Hour)}

	all, err := repo.List(ctx, window, events.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, b.ID, c.ID, d.ID}, ids(all))

	newest, err := repo.List(ctx, window, events.ListOptions{Limit: 2, Descending: true})
	require.NoError(t, err)
	require.Equal(t, []int64{d.ID, c.ID}, ids(newest))

	paged, err := repo.List(ctx, window, events.ListOptions{Limit: 2, Offset: 2, Descending: true})
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID, a.ID}, ids(paged))

	narrow := window
	narrow.From = base.Add(2 * time.Hour)
	narrow.Until = base.Add(3 * time.Hour)
	bounded, err := repo.List(ctx, narrow, events.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID, c.ID}, ids(bounded))

	union := window
	union.Tags = []string{"db", "web"}
	union.Set = events.SetAny
	anyTags, err := repo.List(ctx, union, events.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, c.ID}, ids(anyTags))

	intersect := window
	intersect.Tags = []string{"deploy", "web"}
	intersect.Set = events.SetIntersection
	allTags, err := repo.List(ctx, intersect, events.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, c.ID}, ids(allTags))

	total, err := repo.Count(ctx, intersect)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	total, err = repo.Count(ctx, window)
	require.NoError(t, err)
	require.Equal(t, 4, total)
}

func TestEventRepository_DeleteRemovesTags(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}

	event := seed(t, ctx, repo, "restart", time.Hour, "ops", "web")
	require.NoError(t, repo.Delete(ctx, event.ID))
	require.Zero(t, countTagRows(t, ctx, pool, event.ID))

	_, err := repo.GetByID(ctx, event.ID)
	require.ErrorIs(t, err, events.ErrNotFound)

	require.ErrorIs(t, repo.Delete(ctx, event.ID), events.ErrNotFound)
}

func TestEventRepository_TagRowsBlockBareDelete(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}

	event := seed(t, ctx, repo, "tagged", time.Hour, "ops")
	_, err := pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, event.ID)
	require.Error(t, err)
}

func TestEventRepository_ListOlderThan(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}

	old := seed(t, ctx, repo, "old", time.Hour)
	edge := seed(t, ctx, repo, "edge", 2*time.Hour)
	_ = seed(t, ctx, repo, "fresh", 3*time.Hour)

	expired, err := repo.ListOlderThan(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, []int64{old.ID, edge.ID}, ids(expired))
}

func TestRepository_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	root, err := NewRepository(pool)
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = root.WithTx(ctx, func(ctx context.Context, tx storage.Repository) error {
		_, err := tx.Events().Create(ctx, events.CreateParams{What: "temp", When: base, Tags: []string{"x"}})
		require.NoError(t, err)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	total, err := root.Events().Count(ctx, events.Filter{From: base.Add(-time.Hour), Until: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Zero(t, total)

	require.NoError(t, root.Ping(ctx))
}

func TestMigrationVersion(t *testing.T) {
	_, dbURL := setupPostgres(t)
	version, dirty, err := MigrationVersion(dbURL, "")
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)
}

func ids(items []events.Event) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
