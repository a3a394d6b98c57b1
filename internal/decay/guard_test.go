package decay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardDisablesBelowMinQuality(t *testing.T) {
	g := New(Config{MinQuality: 0.8, MinSamples: 3})
	require.False(t, g.Disabled(1))

	for i := 0; i < 3; i++ {
		g.Observe(1, 100, 50)
	}
	require.True(t, g.Disabled(1))
}

func TestGuardStaysEnabledAboveThreshold(t *testing.T) {
	g := New(Config{MinQuality: 0.5, MinSamples: 2})
	g.Observe(1, 100, 90)
	g.Observe(1, 100, 95)
	require.False(t, g.Disabled(1))
}

func TestReenableClearsHistory(t *testing.T) {
	g := New(Config{MinQuality: 0.9, MinSamples: 1})
	g.Observe(1, 100, 10)
	require.True(t, g.Disabled(1))
	g.Reenable(1)
	require.False(t, g.Disabled(1))
	require.Equal(t, 1.0, g.Quality(1))
}
