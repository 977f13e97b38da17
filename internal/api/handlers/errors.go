package handlers

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/graphevents/internal/domain/events"
)

// statusForError maps domain and transport errors to HTTP status codes.
func statusForError(err error) int {
	var (
		filterErr     events.FilterError
		validationErr events.ValidationError
		maxBytesErr   *http.MaxBytesError
	)
	switch {
	case errors.Is(err, events.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, events.ErrInvalidTags),
		errors.As(err, &filterErr),
		errors.As(err, &validationErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
