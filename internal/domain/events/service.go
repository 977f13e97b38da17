package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/api/pagination"
	"github.com/Togather-Foundation/graphevents/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	DefaultPerPage   = 50
	DefaultPageLinks = 10
)

// ListingConfig controls HTML listing pagination.
type ListingConfig struct {
	PerPage   int
	PageLinks int
}

// ListPage is one rendered page of the HTML listing.
type ListPage struct {
	Events []Event
	Page   pagination.Page
	Pages  []int
	Filter Filter
}

type Service struct {
	repo      Repository
	logger    zerolog.Logger
	validator *validator.Validate
	listing   ListingConfig
	now       func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger, listing ListingConfig) *Service {
	if listing.PerPage <= 0 {
		listing.PerPage = DefaultPerPage
	}
	if listing.PageLinks <= 0 {
		listing.PageLinks = DefaultPageLinks
	}
	return &Service{
		repo:      repo,
		logger:    logger.With().Str("component", "events").Logger(),
		validator: validator.New(),
		listing:   listing,
		now:       time.Now,
	}
}

// Now returns the service clock, used to anchor relative time expressions.
func (s *Service) Now() time.Time {
	return s.now()
}

// List returns one page of matching events, newest first. Page links are computed from the
// requested page number even when it falls back to the last page.
func (s *Service) List(ctx context.Context, filter Filter, requested int) (ListPage, error) {
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return ListPage{}, fmt.Errorf("count events: %w", err)
	}

	page := pagination.Paginate(total, s.listing.PerPage, requested)
	items, err := s.repo.List(ctx, filter, ListOptions{Limit: page.Limit, Offset: page.Offset, Descending: true})
	if err != nil {
		return ListPage{}, fmt.Errorf("list events: %w", err)
	}

	return ListPage{
		Events: keepMatching(items, filter),
		Page:   page,
		Pages:  pagination.PageRange(page.NumPages, requested, s.listing.PageLinks),
		Filter: filter,
	}, nil
}

// Fetch returns every matching event ordered by time, for the data API.
func (s *Service) Fetch(ctx context.Context, filter Filter) ([]Event, error) {
	items, err := s.repo.List(ctx, filter, ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return keepMatching(items, filter), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a submitted event. The label and tags are stripped of markup;
// the data payload is stored as given.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Event, error) {
	params, err := req.Params(s.now())
	if err != nil {
		return nil, err
	}

	params.What = sanitize.Text(params.What)
	params.Tags = sanitize.Tags(params.Tags)

	if err := s.validator.Struct(params); err != nil {
		return nil, ValidationError{Err: err}
	}

	event, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().
		Int64("event_id", event.ID).
		Time("when", event.When).
		Strs("tags", event.Tags).
		Msg("event created")
	return event, nil
}

// Delete removes an event together with its tag associations.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("event_id", id).Msg("event deleted")
	return nil
}

func keepMatching(items []Event, filter Filter) []Event {
	if filter.Set != SetIntersection {
		return items
	}
	kept := items[:0:0]
	for _, item := range items {
		if Matches(item.Tags, filter.Tags, filter.Set) {
			kept = append(kept, item)
		}
	}
	return kept
}
