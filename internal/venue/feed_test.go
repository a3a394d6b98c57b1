package venue

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	pkgws "github.com/yanun0323/polyarb/pkg/websocket"
)

func TestMessageTypeConversionRoundTrips(t *testing.T) {
	cases := []int{websocket.TextMessage, websocket.BinaryMessage, websocket.PingMessage, websocket.PongMessage}
	for _, c := range cases {
		pt := toPkgMessageType(c)
		require.Equal(t, c, toGorillaMessageType(pt))
	}
}

func TestUnknownMessageTypeFallsBackToBinary(t *testing.T) {
	require.Equal(t, pkgws.MessageBinary, toPkgMessageType(999))
	require.Equal(t, websocket.BinaryMessage, toGorillaMessageType(pkgws.MessageType(255)))
}
