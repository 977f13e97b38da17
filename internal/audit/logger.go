// Package audit records who changed which event.
package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	ActionEventCreate = "event.create"
	ActionEventDelete = "event.delete"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry is one audit record. Actor is the bearer token subject, or
// "anonymous" when writes are open.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor"`
	EventID   int64             `json:"event_id,omitempty"`
	Source    string            `json:"source,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Status    string            `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
}

// Logger writes audit entries as structured log lines tagged
// log_type=audit, nested under the "audit" field.
type Logger struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewLogger(base zerolog.Logger) *Logger {
	return &Logger{
		logger: base.With().Str("log_type", "audit").Logger(),
		now:    time.Now,
	}
}

// Log writes entry. A nil Logger discards it.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	if entry.Actor == "" {
		entry.Actor = "anonymous"
	}

	event := l.logger.Info()
	if entry.Status == StatusFailure {
		event = l.logger.Warn()
	}
	event.Interface("audit", entry).Msg(entry.Action)
}

// LogFromRequest fills the client address from r and logs the entry.
func (l *Logger) LogFromRequest(r *http.Request, entry Entry) {
	if l == nil {
		return
	}
	entry.IPAddress = ClientIP(r)
	l.Log(entry)
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
