package signer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yanun0323/polyarb/internal/schema"
)

func TestNoopSignerAlwaysFails(t *testing.T) {
	var s Signer = NoopSigner{}
	_, err := s.Sign(context.Background(), schema.OrderIntent{})
	require.ErrorIs(t, err, ErrNotConfigured)
	require.Equal(t, "", s.Address())
}
