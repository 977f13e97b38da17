// Package problem writes JSON error responses of the form {"error": "..."}.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

type ErrorBody struct {
	Error string `json:"error"`
}

// Write logs err against the request logger and sends a JSON error body.
// Client errors carry err's message. Server errors only expose it outside
// production so internals do not leak.
func Write(w http.ResponseWriter, r *http.Request, status int, err error, env string) {
	message := http.StatusText(status)
	if err != nil && (status < 500 || env == "development" || env == "test") {
		message = err.Error()
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= 500 {
			event = logger.Error()
		}
		event.Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg("request failed")
	}

	WriteMessage(w, status, message)
}

// WriteMessage sends a JSON error body with the given message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	payload, err := json.Marshal(ErrorBody{Error: message})
	if err != nil {
		payload = []byte(`{"error":"Internal Server Error"}`)
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
}
