package events

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseQuery_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	filter, err := ParseQuery(url.Values{}, now)
	require.NoError(t, err)
	require.Equal(t, time.Unix(0, 0).UTC(), filter.From)
	require.Equal(t, now, filter.Until)
	require.Nil(t, filter.Tags)
	require.Equal(t, SetNone, filter.Set)
}

func TestParseQuery_WindowAndTags(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	values := url.Values{
		"from":  {"-1d"},
		"until": {"now"},
		"tags":  {"deploy web deploy"},
		"set":   {"intersection"},
	}

	filter, err := ParseQuery(values, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(-24*time.Hour), filter.From)
	require.Equal(t, now, filter.Until)
	require.Equal(t, []string{"deploy", "web"}, filter.Tags)
	require.Equal(t, SetIntersection, filter.Set)
}

func TestParseQuery_BadTime(t *testing.T) {
	_, err := ParseQuery(url.Values{"from": {"-1fortnight"}}, time.Now())
	var filterErr FilterError
	require.True(t, errors.As(err, &filterErr))
	require.Equal(t, "from", filterErr.Field)
}

func TestEncodeQuery(t *testing.T) {
	values := url.Values{
		"tags":    {"deploy"},
		"page_id": {"3"},
		"from":    {""},
		"jsonp":   {"cb"},
	}
	require.Equal(t, "tags=deploy", EncodeQuery(values))
}
