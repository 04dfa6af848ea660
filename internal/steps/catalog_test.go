package steps_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demoflow/internal/steps"
)

func TestDefaultCatalogLayout(t *testing.T) {
	cat := steps.Default()

	assert.Equal(t, 10, cat.Total())
	assert.Equal(t, 5, cat.GroupCount())
	assert.Equal(t, []int{0, 1, 3, 6, 7}, cat.GroupStarts())

	labels := make([]string, 0, cat.Total())
	for _, def := range cat.Flattened() {
		labels = append(labels, def.Label)
	}
	assert.Equal(t, []string{
		"File Upload",
		"Encoding Started", "Encoding Finished",
		"Decoding Started", "Decoded Video", "Decoding Finished",
		"Compare PSNR",
		"Upload Screenshots", "Process Images", "Show Timestamps",
	}, labels)
}

func TestGroupRangeAndGroupOf(t *testing.T) {
	cat := steps.Default()

	start, end, ok := cat.GroupRange(2)
	require.True(t, ok)
	assert.Equal(t, 3, start)
	assert.Equal(t, 6, end)

	for idx := start; idx < end; idx++ {
		g, ok := cat.GroupOf(idx)
		require.True(t, ok)
		assert.Equal(t, 2, g)
	}

	_, _, ok = cat.GroupRange(5)
	assert.False(t, ok)
	_, ok = cat.GroupOf(-1)
	assert.False(t, ok)
	_, ok = cat.GroupOf(cat.Total())
	assert.False(t, ok)
}

func TestIndexOfKind(t *testing.T) {
	cat := steps.Default()
	for i, def := range cat.Flattened() {
		idx, ok := cat.IndexOf(def.Kind)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

func TestNewRejectsInvalidGroups(t *testing.T) {
	cases := []struct {
		name   string
		groups []steps.Group
	}{
		{name: "no groups"},
		{name: "empty group", groups: []steps.Group{{Label: "Empty"}}},
		{name: "blank label", groups: []steps.Group{{Label: " ", Steps: []steps.Definition{steps.Step(steps.FileUpload)}}}},
		{name: "duplicate kind", groups: []steps.Group{
			{Label: "A", Steps: []steps.Definition{steps.Step(steps.FileUpload)}},
			{Label: "B", Steps: []steps.Definition{steps.Step(steps.FileUpload)}},
		}},
		{name: "unknown kind", groups: []steps.Group{{Label: "A", Steps: []steps.Definition{{Label: "x", Kind: steps.Kind(99)}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := steps.New(tc.groups...)
			assert.Error(t, err)
		})
	}
}

func TestKindSlugRoundTrip(t *testing.T) {
	for _, k := range steps.Kinds() {
		parsed, ok := steps.ParseKind(k.Slug())
		require.True(t, ok, k.Slug())
		assert.Equal(t, k, parsed)
	}
	_, ok := steps.ParseKind("nope")
	assert.False(t, ok)
	assert.Equal(t, "Unknown", steps.Kind(-1).String())
}
