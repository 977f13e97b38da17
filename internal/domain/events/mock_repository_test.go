package events

import (
	"context"
	"sort"
	"time"
)

// memoryRepository keeps events in a slice and applies filters the way the
// SQL repository does.
type memoryRepository struct {
	events []Event
	nextID int64

	deleteFn func(ctx context.Context, id int64) error
	createFn func(ctx context.Context, params CreateParams) (*Event, error)
}

func newMemoryRepository(items ...Event) *memoryRepository {
	repo := &memoryRepository{}
	for _, item := range items {
		if item.ID > repo.nextID {
			repo.nextID = item.ID
		}
		repo.events = append(repo.events, item)
	}
	return repo
}

func (m *memoryRepository) selected(filter Filter) []Event {
	var out []Event
	for _, item := range m.events {
		if item.When.Before(filter.From) || item.When.After(filter.Until) {
			continue
		}
		if filter.Set == SetAny && !hasAny(item.Tags, filter.Tags) {
			continue
		}
		if filter.Set == SetIntersection && !Matches(item.Tags, filter.Tags, SetIntersection) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].When.Before(out[j].When) })
	return out
}

func hasAny(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (m *memoryRepository) Count(ctx context.Context, filter Filter) (int, error) {
	return len(m.selected(filter)), nil
}

func (m *memoryRepository) List(ctx context.Context, filter Filter, opts ListOptions) ([]Event, error) {
	items := m.selected(filter)
	if opts.Descending {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	if opts.Offset >= len(items) {
		return nil, nil
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items, nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id int64) (*Event, error) {
	for _, item := range m.events {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepository) Create(ctx context.Context, params CreateParams) (*Event, error) {
	if m.createFn != nil {
		return m.createFn(ctx, params)
	}
	m.nextID++
	item := Event{ID: m.nextID, When: params.When, What: params.What, Tags: params.Tags, Data: params.Data}
	m.events = append(m.events, item)
	return &item, nil
}

func (m *memoryRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		if err := m.deleteFn(ctx, id); err != nil {
			return err
		}
	}
	for i, item := range m.events {
		if item.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Event, error) {
	var out []Event
	for _, item := range m.events {
		if !item.When.After(cutoff) {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].When.Before(out[j].When) })
	return out, nil
}
