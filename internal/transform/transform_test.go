package transform_test

import (
	"testing"

	"github.com/getherald/herald/internal/model"
	"github.com/getherald/herald/internal/transform"

	"github.com/stretchr/testify/require"
)

// recorder captures progress checkpoints for assertions.
type recorder struct {
	percents []int
	messages []string
	err      error
}

func (r *recorder) fn(percent int, message string) error {
	if r.err != nil {
		return r.err
	}
	r.percents = append(r.percents, percent)
	r.messages = append(r.messages, message)
	return nil
}

func (r *recorder) requireAscending(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, r.percents)
	for i := 1; i < len(r.percents); i++ {
		require.GreaterOrEqual(t, r.percents[i], r.percents[i-1])
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	registry := transform.FromConfig(model.DefaultConfig().Transforms)

	names := make([]string, 0, 3)
	for _, tr := range registry.All() {
		names = append(names, tr.Name())
		require.NotEmpty(t, tr.Description())
		require.NotEmpty(t, tr.Kinds())
		require.Positive(t, tr.EstimatedSeconds())
	}
	require.Equal(t, []string{"geoip", "dnslookup", "portscan"}, names)

	tr, ok := registry.Lookup("geoip")
	require.True(t, ok)
	require.Equal(t, "geoip", tr.Name())

	_, ok = registry.Lookup("whois")
	require.False(t, ok)
}

func TestRegistryDuplicateName(t *testing.T) {
	t.Parallel()
	first := transform.NewGeoip(model.Geoip{Synthetic: true})
	second := transform.NewGeoip(model.Geoip{Synthetic: false})

	registry := transform.NewRegistry(first, second)
	require.Len(t, registry.All(), 1)

	got, ok := registry.Lookup("geoip")
	require.True(t, ok)
	require.Same(t, first, got)
}
