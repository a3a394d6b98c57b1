// Package signer defines the boundary between the engine and EIP-712
// order signing. Actual private key material and signing never live
// in this repository; a real deployment wires in an external signer
// (an HSM, a co-located signing service, or a wallet daemon) behind
// this interface.
package signer

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/polyarb/internal/schema"
)

// SignedOrder is the venue-ready order payload after EIP-712 signing.
type SignedOrder struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Signature     string `json:"signature"`
	SignatureType int    `json:"signatureType"`
}

// Signer produces a venue-ready signed order for an internal order
// intent. Implementations are expected to be safe for concurrent use
// since og.Dispatcher's worker pool may call Sign from multiple
// goroutines.
type Signer interface {
	Sign(ctx context.Context, intent schema.OrderIntent) (SignedOrder, error)
	Address() string
}

// ErrNotConfigured is returned by NoopSigner, used to fail loudly in
// any deployment that forgot to wire a real signer.
var ErrNotConfigured = errors.New("no signer configured")

// NoopSigner always fails; it exists so wiring code has a safe default
// that cannot accidentally submit an unsigned order.
type NoopSigner struct{}

// Sign always returns ErrNotConfigured.
func (NoopSigner) Sign(ctx context.Context, intent schema.OrderIntent) (SignedOrder, error) {
	return SignedOrder{}, ErrNotConfigured
}

// Address returns the empty string.
func (NoopSigner) Address() string { return "" }
