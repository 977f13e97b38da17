package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSetOperation(t *testing.T) {
	require.Equal(t, SetNone, ParseSetOperation("intersection", false))
	require.Equal(t, SetAny, ParseSetOperation("", true))
	require.Equal(t, SetAny, ParseSetOperation("union", true))
	require.Equal(t, SetIntersection, ParseSetOperation("intersection", true))
	require.Equal(t, SetIntersection, ParseSetOperation(" Intersection ", true))
}

func TestParseTags(t *testing.T) {
	require.Nil(t, ParseTags(""))
	require.Nil(t, ParseTags("   "))
	require.Equal(t, []string{"deploy", "web"}, ParseTags("  deploy \t web "))
	require.Equal(t, "deploy web", JoinTags([]string{"deploy", "web"}))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		have     []string
		required []string
		mode     SetOperation
		want     bool
	}{
		{name: "no filter", have: nil, required: []string{"a"}, mode: SetNone, want: true},
		{name: "union passes through", have: []string{"x"}, required: []string{"a"}, mode: SetAny, want: true},
		{name: "intersection all present", have: []string{"a", "b", "c"}, required: []string{"a", "c"}, mode: SetIntersection, want: true},
		{name: "intersection one missing", have: []string{"a", "b"}, required: []string{"a", "c"}, mode: SetIntersection, want: false},
		{name: "intersection empty event", have: nil, required: []string{"a"}, mode: SetIntersection, want: false},
		{name: "intersection no required", have: nil, required: nil, mode: SetIntersection, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Matches(tt.have, tt.required, tt.mode))
		})
	}
}

func TestMatches_SupersetProperty(t *testing.T) {
	required := []string{"a", "b"}
	for _, extra := range [][]string{nil, {"c"}, {"c", "d", "e"}} {
		have := append(append([]string{}, required...), extra...)
		require.True(t, Matches(have, required, SetIntersection))
	}
}
