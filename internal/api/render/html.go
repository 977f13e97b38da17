// Package render executes the HTML templates for the events UI.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/Togather-Foundation/graphevents/web"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// ListView is the data for the paginated listing. Query holds the encoded
// filter parameters carried across page links.
type ListView struct {
	events.ListPage
	Query string
}

// DetailView is the data for a single event page.
type DetailView struct {
	Event     events.Event
	CSRFField template.HTML
}

type ErrorView struct {
	Status  int
	Title   string
	Message string
}

// Renderer holds one parsed template set per page, each sharing base.html.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"utc":     FormatTime,
	"join":    events.JoinTags,
	"pageURL": PageURL,
}

func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{"list", "detail", "error"} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(web.Templates, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// MustNew is New for process start-up, where the embedded templates are
// known to be valid.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Renderer) List(w http.ResponseWriter, view ListView) error {
	return r.execute(w, "list", http.StatusOK, view)
}

func (r *Renderer) Detail(w http.ResponseWriter, view DetailView) error {
	return r.execute(w, "detail", http.StatusOK, view)
}

// Error renders the plain error page. An empty message falls back to the
// status text.
func (r *Renderer) Error(w http.ResponseWriter, status int, message string) error {
	title := http.StatusText(status)
	if message == "" {
		message = title
	}
	return r.execute(w, "error", status, ErrorView{Status: status, Title: title, Message: message})
}

func (r *Renderer) execute(w http.ResponseWriter, name string, status int, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// PageURL links to a listing page, keeping the encoded filter query.
func PageURL(page int, query string) string {
	u := "/events/page/" + strconv.Itoa(page)
	if query != "" {
		u += "?" + query
	}
	return u
}
