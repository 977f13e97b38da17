package storage

import (
	"context"

	"github.com/Togather-Foundation/graphevents/internal/domain/events"
)

// Repository groups data access by domain.
type Repository interface {
	Events() events.Repository
	Ping(ctx context.Context) error

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
