package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/graphevents/internal/api/middleware"
	"github.com/Togather-Foundation/graphevents/internal/api/problem"
	"github.com/Togather-Foundation/graphevents/internal/api/render"
	"github.com/Togather-Foundation/graphevents/internal/audit"
	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/Togather-Foundation/graphevents/internal/metrics"
	"github.com/rs/zerolog"
)

// jsonpCallback accepts dotted JavaScript identifiers such as "cb" or
// "Graph.annotations".
var jsonpCallback = regexp.MustCompile(`^[A-Za-z_$][0-9A-Za-z_$]*(\.[A-Za-z_$][0-9A-Za-z_$]*)*$`)

type EventsHandler struct {
	Service  *events.Service
	Renderer *render.Renderer
	Audit    *audit.Logger
	Env      string
}

func NewEventsHandler(service *events.Service, renderer *render.Renderer, env string) *EventsHandler {
	return &EventsHandler{Service: service, Renderer: renderer, Env: env}
}

// eventJSON is the wire form used by get_data and the JSON detail view.
type eventJSON struct {
	ID   int64    `json:"id"`
	When float64  `json:"when"`
	What string   `json:"what"`
	Tags []string `json:"tags"`
	Data string   `json:"data"`
}

func toJSON(event events.Event) eventJSON {
	tags := event.Tags
	if tags == nil {
		tags = []string{}
	}
	return eventJSON{
		ID:   event.ID,
		When: events.EpochSeconds(event.When),
		What: event.What,
		Tags: tags,
		Data: event.Data,
	}
}

// List handles GET /events/.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.listPage(w, r, 1)
}

// ListPage handles GET /events/page/{page_id}. A page id that is not a
// number shows the first page.
func (h *EventsHandler) ListPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page_id"))
	if err != nil {
		page = 1
	}
	h.listPage(w, r, page)
}

func (h *EventsHandler) listPage(w http.ResponseWriter, r *http.Request, page int) {
	query := r.URL.Query()
	filter, err := events.ParseQuery(query, h.Service.Now())
	if err != nil {
		h.htmlError(w, r, statusForError(err), err)
		return
	}

	result, err := h.Service.List(r.Context(), filter, page)
	if err != nil {
		h.htmlError(w, r, statusForError(err), err)
		return
	}

	view := render.ListView{ListPage: result, Query: events.EncodeQuery(query)}
	if err := h.Renderer.List(w, view); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render listing")
	}
}

// Create handles POST /events/. The response body is empty on success.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		problem.Write(w, r, statusForError(err), err, h.Env)
		return
	}

	req, err := events.DecodeCreateRequest(bytes.NewReader(body))
	if err != nil {
		problem.Write(w, r, statusForError(err), err, h.Env)
		return
	}

	event, err := h.Service.Create(r.Context(), req)
	if err != nil {
		problem.Write(w, r, statusForError(err), err, h.Env)
		return
	}

	metrics.EventsCreated.Inc()
	h.Audit.LogFromRequest(r, audit.Entry{
		Action:  audit.ActionEventCreate,
		Actor:   actor(r),
		EventID: event.ID,
		Source:  "api",
		Status:  audit.StatusSuccess,
		Details: map[string]string{"what": event.What},
	})
	w.WriteHeader(http.StatusOK)
}

// Data handles GET /events/get_data, answering JSON or, when jsonp is
// present, a JavaScript call wrapping the same array.
func (h *EventsHandler) Data(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	wrap := query.Has("jsonp")
	callback := strings.TrimSpace(query.Get("jsonp"))
	if callback != "" && !jsonpCallback.MatchString(callback) {
		problem.Write(w, r, http.StatusBadRequest, events.FilterError{Field: "jsonp", Message: "not a valid callback name"}, h.Env)
		return
	}

	filter, err := events.ParseQuery(query, h.Service.Now())
	if err != nil {
		problem.Write(w, r, statusForError(err), err, h.Env)
		return
	}

	items, err := h.Service.Fetch(r.Context(), filter)
	if err != nil {
		problem.Write(w, r, statusForError(err), err, h.Env)
		return
	}

	payload := make([]eventJSON, 0, len(items))
	for _, item := range items {
		payload = append(payload, toJSON(item))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, err, h.Env)
		return
	}

	// An empty jsonp value still wraps, producing a bare parenthesized array.
	if wrap {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(callback + "("))
		_, _ = w.Write(body)
		_, _ = w.Write([]byte(")"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Detail handles GET /events/{id}: HTML unless the client prefers JSON.
func (h *EventsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	wantsJSON := middleware.WantsJSON(r)

	id, ok := eventID(r)
	if !ok {
		h.detailError(w, r, wantsJSON, http.StatusNotFound, events.ErrNotFound)
		return
	}

	event, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.detailError(w, r, wantsJSON, statusForError(err), err)
		return
	}

	if wantsJSON {
		writeJSON(w, http.StatusOK, toJSON(*event))
		return
	}

	view := render.DetailView{Event: *event, CSRFField: middleware.CSRFField(r)}
	if err := h.Renderer.Detail(w, view); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render event detail")
	}
}

// DeleteForm handles the HTML form POST /events/{id}/delete.
func (h *EventsHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		h.htmlError(w, r, http.StatusNotFound, events.ErrNotFound)
		return
	}

	err := h.Service.Delete(r.Context(), id)
	h.auditDelete(r, id, "form", err)
	if err != nil {
		h.htmlError(w, r, statusForError(err), err)
		return
	}

	metrics.EventsDeleted.WithLabelValues("form").Inc()
	http.Redirect(w, r, "/events/", http.StatusSeeOther)
}

// Delete handles DELETE /events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		problem.Write(w, r, http.StatusNotFound, events.ErrNotFound, h.Env)
		return
	}

	err := h.Service.Delete(r.Context(), id)
	h.auditDelete(r, id, "api", err)
	if err != nil {
		problem.Write(w, r, statusForError(err), err, h.Env)
		return
	}

	metrics.EventsDeleted.WithLabelValues("api").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventsHandler) detailError(w http.ResponseWriter, r *http.Request, wantsJSON bool, status int, err error) {
	if wantsJSON {
		problem.Write(w, r, status, err, h.Env)
		return
	}
	h.htmlError(w, r, status, err)
}

func (h *EventsHandler) htmlError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := zerolog.Ctx(r.Context())
	message := http.StatusText(status)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
		message = err.Error()
	}

	if renderErr := h.Renderer.Error(w, status, message); renderErr != nil {
		logger.Error().Err(renderErr).Msg("render error page")
	}
}

func (h *EventsHandler) auditDelete(r *http.Request, id int64, source string, err error) {
	entry := audit.Entry{
		Action:  audit.ActionEventDelete,
		Actor:   actor(r),
		EventID: id,
		Source:  source,
		Status:  audit.StatusSuccess,
	}
	if err != nil {
		entry.Status = audit.StatusFailure
		entry.Details = map[string]string{"error": err.Error()}
	}
	h.Audit.LogFromRequest(r, entry)
}

// actor names the authenticated caller, if any.
func actor(r *http.Request) string {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}

func eventID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
