package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// Filter parameters: $1 from, $2 until, $3 tag array (NULL when unfiltered),
// $4 number of tags every row must carry (0 unless intersecting).
const eventFilterSQL = `
 WHERE e."when" >= $1
   AND e."when" <= $2
   AND ($3::text[] IS NULL OR EXISTS (
         SELECT 1 FROM event_tags t
          WHERE t.event_id = e.id AND t.tag = ANY($3::text[])))
   AND ($4::int = 0 OR e.id IN (
         SELECT t.event_id FROM event_tags t
          WHERE t.tag = ANY($3::text[])
          GROUP BY t.event_id
         HAVING count(DISTINCT t.tag) = $4::int))
`

type eventRow struct {
	ID   int64
	When time.Time
	What string
	Tags string
	Data string
}

func (row eventRow) toEvent() events.Event {
	return events.Event{
		ID:   row.ID,
		When: row.When.UTC(),
		What: row.What,
		Tags: events.ParseTags(row.Tags),
		Data: row.Data,
	}
}

func filterArgs(filter events.Filter) []any {
	var tagArray any
	required := 0
	if filter.Set != events.SetNone && len(filter.Tags) > 0 {
		tagArray = filter.Tags
		if filter.Set == events.SetIntersection {
			required = len(filter.Tags)
		}
	}
	return []any{filter.From, filter.Until, tagArray, required}
}

func (r *EventRepository) Count(ctx context.Context, filter events.Filter) (int, error) {
	var total int
	err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM events e`+eventFilterSQL, filterArgs(filter)...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return total, nil
}

func (r *EventRepository) List(ctx context.Context, filter events.Filter, opts events.ListOptions) ([]events.Event, error) {
	order := `ORDER BY e."when" ASC, e.id ASC`
	if opts.Descending {
		order = `ORDER BY e."when" DESC, e.id DESC`
	}

	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}

	args := append(filterArgs(filter), limit, opts.Offset)
	rows, err := r.queryer().Query(ctx, `
SELECT e.id, e."when", e.what, e.tags, e.data
  FROM events e`+eventFilterSQL+order+`
 LIMIT $5 OFFSET $6
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return scanEvents(rows)
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*events.Event, error) {
	var row eventRow
	err := r.queryer().QueryRow(ctx, `
SELECT id, "when", what, tags, data
  FROM events
 WHERE id = $1
`, id).Scan(&row.ID, &row.When, &row.What, &row.Tags, &row.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	event := row.toEvent()
	return &event, nil
}

// Create inserts the event and its tag rows in one transaction.
func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	row := eventRow{
		What: params.What,
		Tags: events.JoinTags(params.Tags),
		Data: params.Data,
	}

	err := pgx.BeginFunc(ctx, r.beginner(), func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
INSERT INTO events ("when", what, tags, data)
VALUES ($1, $2, $3, $4)
RETURNING id, "when"
`, params.When, row.What, row.Tags, row.Data).Scan(&row.ID, &row.When); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		if len(params.Tags) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO event_tags (event_id, tag)
SELECT $1, tag FROM unnest($2::text[]) AS tag
ON CONFLICT DO NOTHING
`, row.ID, params.Tags); err != nil {
			return fmt.Errorf("insert event tags: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := row.toEvent()
	return &event, nil
}

// Delete removes the tag rows and then the event in one transaction.
func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	return pgx.BeginFunc(ctx, r.beginner(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM event_tags WHERE event_id = $1`, id); err != nil {
			return fmt.Errorf("delete event tags: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return events.ErrNotFound
		}
		return nil
	})
}

func (r *EventRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]events.Event, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT id, "when", what, tags, data
  FROM events
 WHERE "when" <= $1
 ORDER BY "when" ASC, id ASC
`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]events.Event, error) {
	defer rows.Close()

	items := make([]events.Event, 0)
	for rows.Next() {
		var row eventRow
		if err := rows.Scan(&row.ID, &row.When, &row.What, &row.Tags, &row.Data); err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		items = append(items, row.toEvent())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *EventRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// beginner opens a savepoint inside an outer transaction, or a fresh
// transaction on the pool.
func (r *EventRepository) beginner() beginner {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
