package render

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/api/pagination"
	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/stretchr/testify/require"
)

func TestListEscapesAndLinksPages(t *testing.T) {
	r := MustNew()
	rec := httptest.NewRecorder()

	view := ListView{
		ListPage: events.ListPage{
			Events: []events.Event{{
				ID:   7,
				When: time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600)),
				What: "<script>alert(1)</script>",
				Tags: []string{"deploy", "web"},
			}},
			Page:  pagination.Paginate(120, 50, 2),
			Pages: []int{1, 2, 3},
		},
		Query: "set=union&tags=deploy",
	}

	require.NoError(t, r.List(rec, view))
	body := rec.Body.String()

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.NotContains(t, body, "<script>alert(1)</script>")
	require.Contains(t, body, "&lt;script&gt;")
	require.Contains(t, body, "2024-03-01 17:00:00 UTC")
	require.Contains(t, body, `href="/events/7"`)
	require.Contains(t, body, `href="/events/page/3?set=union&amp;tags=deploy"`)
	require.Contains(t, body, `<span class="current">2</span>`)
	require.Contains(t, body, `rel="prev"`)
	require.Contains(t, body, `rel="next"`)
}

func TestListEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	view := ListView{ListPage: events.ListPage{Page: pagination.Paginate(0, 50, 1), Pages: []int{1}}}

	require.NoError(t, MustNew().List(rec, view))
	require.Contains(t, rec.Body.String(), "No events.")
	require.NotContains(t, rec.Body.String(), `class="pages"`)
}

func TestDetailIncludesDeleteForm(t *testing.T) {
	rec := httptest.NewRecorder()
	view := DetailView{
		Event:     events.Event{ID: 3, When: time.Unix(0, 0), What: "release", Data: `{"sha":"abc"}`},
		CSRFField: template.HTML(`<input type="hidden" name="gorilla.csrf.Token" value="tok">`),
	}

	require.NoError(t, MustNew().Detail(rec, view))
	body := rec.Body.String()
	require.Contains(t, body, `action="/events/3/delete"`)
	require.Contains(t, body, `value="tok"`)
	require.Contains(t, body, "none")
	require.Contains(t, body, "{&#34;sha&#34;:&#34;abc&#34;}")
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, MustNew().Error(rec, http.StatusNotFound, ""))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Not Found")
}

func TestPageURL(t *testing.T) {
	require.Equal(t, "/events/page/4", PageURL(4, ""))
	require.Equal(t, "/events/page/1?tags=a", PageURL(1, "tags=a"))
}
