package ops

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func validFileConfig() FileConfig {
	return FileConfig{
		Markets: []MarketConfig{
			{ConditionID: "0xabc", Question: "Will X happen?", YesToken: 1, NoToken: 2, TickSize: 1, MinOrderSize: 100, FeeBps: 10},
		},
		Thresholds: ThresholdConfig{MinEdgeBps: 50, RequestedSize: 1000},
	}
}

func TestResolveAppliesTTLDefaults(t *testing.T) {
	loaded, err := resolve(validFileConfig())
	require.NoError(t, err)
	require.Equal(t, int64(30), loaded.TTLs.OrderTTLSecs)
	require.Equal(t, FlattenModeCancelOnly, loaded.Flatten)
}

func TestResolveRejectsMissingMarkets(t *testing.T) {
	cfg := validFileConfig()
	cfg.Markets = nil
	_, err := resolve(cfg)
	require.Error(t, err)
}

func TestResolveRejectsZeroMinEdge(t *testing.T) {
	cfg := validFileConfig()
	cfg.Thresholds.MinEdgeBps = 0
	_, err := resolve(cfg)
	require.Error(t, err)
}

func TestBuildRegistrySeedsMarkets(t *testing.T) {
	loaded, err := resolve(validFileConfig())
	require.NoError(t, err)

	reg, err := BuildRegistry(loaded)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Count())
}

func TestRuntimeConfigSetMinEdgeBps(t *testing.T) {
	loaded, err := resolve(validFileConfig())
	require.NoError(t, err)

	rc := NewRuntimeConfig(loaded)
	rc.SetMinEdgeBps(200)
	require.Equal(t, int64(200), rc.Load().Thresholds.MinEdgeBps)
}

func TestLoadEnvRequiresAllVariables(t *testing.T) {
	for _, key := range []string{
		"VENUE_WS_URL", "VENUE_REST_URL", "ANCILLARY_API_URL", "CHAIN_ID",
		"SIGNATURE_SCHEME", "PRIVATE_KEY", "API_KEY", "API_SECRET",
		"API_PASSPHRASE", "DB_PATH", "BOT_MODE",
	} {
		os.Unsetenv(key)
	}
	_, err := LoadEnv()
	require.Error(t, err)
}

func TestRedactScrubsSensitiveFields(t *testing.T) {
	fields := map[string]any{"Private_Key": "0xdeadbeef", "market": "0xabc"}
	Redact(fields)
	require.Equal(t, redactedToken, fields["Private_Key"])
	require.Equal(t, "0xabc", fields["market"])
}
