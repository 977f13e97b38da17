package events

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("event not found")

// ErrInvalidTags is returned when a submitted tags value is neither a list
// of strings nor a space-separated string.
var ErrInvalidTags = errors.New(`"tags" must be an array or space-separated string`)

// Event is a timestamped, tagged annotation.
type Event struct {
	ID   int64
	When time.Time
	What string
	Tags []string
	Data string
}

// CreateParams carries a validated, sanitized event ready for storage.
type CreateParams struct {
	What string    `validate:"required,max=255"`
	Tags []string  `validate:"max=64,dive,required,max=128"`
	When time.Time `validate:"required"`
	Data string
}

// Filter selects events by time window and tags.
type Filter struct {
	From  time.Time
	Until time.Time
	Tags  []string
	Set   SetOperation
}

// ListOptions bounds a listing query.
type ListOptions struct {
	Limit      int
	Offset     int
	Descending bool
}

type Repository interface {
	Count(ctx context.Context, filter Filter) (int, error)
	List(ctx context.Context, filter Filter, opts ListOptions) ([]Event, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, params CreateParams) (*Event, error)
	Delete(ctx context.Context, id int64) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Event, error)
}

// FilterError reports an unusable query parameter.
type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidationError wraps a create request that failed validation.
type ValidationError struct {
	Err error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %v", e.Err)
}

func (e ValidationError) Unwrap() error { return e.Err }
