package events

import (
	"net/url"
	"strings"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/attime"
)

// ParseQuery builds a Filter from the from, until, tags and set parameters.
// The window defaults to [Unix epoch, now].
func ParseQuery(values url.Values, now time.Time) (Filter, error) {
	filter := Filter{
		From:  time.Unix(0, 0).UTC(),
		Until: now,
	}

	if values.Has("from") {
		from, err := attime.Parse(values.Get("from"), now)
		if err != nil {
			return filter, FilterError{Field: "from", Message: err.Error()}
		}
		filter.From = from
	}
	if values.Has("until") {
		until, err := attime.Parse(values.Get("until"), now)
		if err != nil {
			return filter, FilterError{Field: "until", Message: err.Error()}
		}
		filter.Until = until
	}

	if values.Has("tags") {
		filter.Tags = uniqueTags(ParseTags(values.Get("tags")))
	}
	filter.Set = ParseSetOperation(values.Get("set"), len(filter.Tags) > 0)

	return filter, nil
}

func uniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// EncodeQuery keeps only the listing parameters, for building page links.
func EncodeQuery(values url.Values) string {
	kept := url.Values{}
	for _, key := range []string{"from", "until", "tags", "set"} {
		if value := strings.TrimSpace(values.Get(key)); value != "" {
			kept.Set(key, value)
		}
	}
	return kept.Encode()
}
