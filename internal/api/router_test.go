package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/auth"
	"github.com/Togather-Foundation/graphevents/internal/config"
	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu    sync.Mutex
	items []events.Event
}

func (m *memoryRepo) Count(ctx context.Context, filter events.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *memoryRepo) List(ctx context.Context, filter events.Filter, opts events.ListOptions) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.items...), nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id int64) (*events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, events.ErrNotFound
}

func (m *memoryRepo) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event := events.Event{ID: int64(len(m.items) + 1), When: params.When, What: params.What, Tags: params.Tags, Data: params.Data}
	m.items = append(m.items, event)
	return &event, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return events.ErrNotFound
}

func (m *memoryRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]events.Event, error) {
	return nil, nil
}

type pageStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func (s *pageStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *pageStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T, withAuth bool) (http.Handler, *memoryRepo, *pageStore) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Environment = "test"

	repo := &memoryRepo{items: []events.Event{
		{ID: 1, When: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), What: "deploy", Tags: []string{"deploy"}},
	}}
	store := &pageStore{values: map[string][]byte{}}

	deps := Dependencies{
		Config:    cfg,
		Logger:    zerolog.Nop(),
		Service:   events.NewService(repo, zerolog.Nop(), events.ListingConfig{}),
		PageCache: store,
		Build:     BuildInfo{Version: "test"},
	}
	if withAuth {
		deps.JWT = auth.NewJWTManager(testSecret, "graphevents")
	}
	return NewRouter(deps), repo, store
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMethodMux(t *testing.T) {
	mux := methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("GET response"))
		}),
		http.MethodPost: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}),
	})

	tests := []struct {
		method      string
		wantStatus  int
		expectAllow string
	}{
		{method: http.MethodGet, wantStatus: http.StatusOK},
		{method: http.MethodHead, wantStatus: http.StatusOK},
		{method: http.MethodPost, wantStatus: http.StatusCreated},
		{method: http.MethodPut, wantStatus: http.StatusMethodNotAllowed, expectAllow: "GET, POST"},
		{method: http.MethodPatch, wantStatus: http.StatusMethodNotAllowed, expectAllow: "GET, POST"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := do(mux, tt.method, "/events/", "", nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			require.Equal(t, tt.expectAllow, rec.Header().Get("Allow"))
		})
	}
}

func TestRouter_Routes(t *testing.T) {
	router, _, _ := newTestRouter(t, false)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{name: "index redirects", method: http.MethodGet, target: "/", wantStatus: http.StatusFound},
		{name: "listing", method: http.MethodGet, target: "/events/", wantStatus: http.StatusOK},
		{name: "listing page", method: http.MethodGet, target: "/events/page/2", wantStatus: http.StatusOK},
		{name: "listing bad page", method: http.MethodGet, target: "/events/page/abc", wantStatus: http.StatusOK},
		{name: "get_data", method: http.MethodGet, target: "/events/get_data?tags=deploy", wantStatus: http.StatusOK},
		{name: "detail", method: http.MethodGet, target: "/events/1", wantStatus: http.StatusOK},
		{name: "detail missing", method: http.MethodGet, target: "/events/99", wantStatus: http.StatusNotFound},
		{name: "listing wrong method", method: http.MethodPut, target: "/events/", wantStatus: http.StatusMethodNotAllowed},
		{name: "healthz", method: http.MethodGet, target: "/healthz", wantStatus: http.StatusOK},
		{name: "readyz", method: http.MethodGet, target: "/readyz", wantStatus: http.StatusOK},
		{name: "version", method: http.MethodGet, target: "/version", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusOK},
		{name: "robots", method: http.MethodGet, target: "/robots.txt", wantStatus: http.StatusOK},
		{name: "unknown", method: http.MethodGet, target: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, tt.method, tt.target, "", nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		})
	}
}

func TestRouter_ListingWrongMethodAllowHeader(t *testing.T) {
	router, _, _ := newTestRouter(t, false)

	rec := do(router, http.MethodPut, "/events/", "", nil)
	require.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestRouter_ListingIsCached(t *testing.T) {
	router, _, store := newTestRouter(t, false)

	first := do(router, http.MethodGet, "/events/?tags=deploy", "", nil)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do(router, http.MethodGet, "/events/?tags=deploy", "", nil)
	require.Equal(t, "HIT", second.Header().Get("X-Cache"))
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Len(t, store.values, 1)
}

func TestRouter_OpenWritesWithoutSecret(t *testing.T) {
	router, repo, _ := newTestRouter(t, false)

	rec := do(router, http.MethodPost, "/events/", `{"what":"release","tags":"a b"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.items, 2)

	rec = do(router, http.MethodDelete, "/events/2", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, repo.items, 1)
}

func TestRouter_WritesRequireToken(t *testing.T) {
	router, repo, _ := newTestRouter(t, true)
	manager := auth.NewJWTManager(testSecret, "graphevents")
	writer, err := manager.Generate("ci", auth.RoleWriter, time.Hour)
	require.NoError(t, err)
	admin, err := manager.Generate("ops", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	rec := do(router, http.MethodPost, "/events/", `{"what":"release"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(router, http.MethodPost, "/events/", `{"what":"release"}`, map[string]string{"Authorization": "Bearer " + writer})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.items, 2)

	rec = do(router, http.MethodDelete, "/events/1", "", map[string]string{"Authorization": "Bearer " + writer})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(router, http.MethodDelete, "/events/1", "", map[string]string{"Authorization": "Bearer " + admin})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	router, _, _ := newTestRouter(t, false)

	body := `{"what":"x","data":"` + strings.Repeat("a", 2<<20) + `"}`
	rec := do(router, http.MethodPost, "/events/", body, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_DeleteFormNeedsCSRFToken(t *testing.T) {
	router, repo, _ := newTestRouter(t, false)

	rec := do(router, http.MethodPost, "/events/1/delete", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Len(t, repo.items, 1)
}
