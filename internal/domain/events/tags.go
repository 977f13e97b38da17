package events

import "strings"

// SetOperation decides how requested tags combine when filtering.
type SetOperation int

const (
	// SetNone applies no tag filtering.
	SetNone SetOperation = iota
	// SetAny matches events carrying at least one requested tag.
	SetAny
	// SetIntersection matches events carrying every requested tag.
	SetIntersection
)

func (s SetOperation) String() string {
	switch s {
	case SetAny:
		return "union"
	case SetIntersection:
		return "intersection"
	default:
		return "none"
	}
}

// ParseSetOperation maps the "set" query parameter. Only "intersection" is
// special; anything else means union once tags were requested.
func ParseSetOperation(value string, hasTags bool) SetOperation {
	if !hasTags {
		return SetNone
	}
	if strings.EqualFold(strings.TrimSpace(value), "intersection") {
		return SetIntersection
	}
	return SetAny
}

// ParseTags splits a space-separated tag string. Empty input yields nil.
func ParseTags(value string) []string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func JoinTags(tags []string) string {
	return strings.Join(tags, " ")
}

// Matches reports whether an event with eventTags satisfies the requested tags.
func Matches(eventTags []string, required []string, mode SetOperation) bool {
	if mode == SetNone || len(required) == 0 {
		return true
	}
	if mode == SetAny {
		return true
	}

	have := make(map[string]struct{}, len(eventTags))
	for _, tag := range eventTags {
		have[tag] = struct{}{}
	}
	for _, tag := range required {
		if _, ok := have[tag]; !ok {
			return false
		}
	}
	return true
}
