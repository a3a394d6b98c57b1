// Package ops loads and hot-reloads the engine's runtime configuration:
// the tracked market list, edge/risk thresholds, and the environment
// variables that gate live trading (DRY_RUN, START_PAUSED, BOT_MODE).
package ops

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/polyarb/internal/market"
	"github.com/yanun0323/polyarb/internal/risk"
	"github.com/yanun0323/polyarb/internal/schema"
)

// BotMode selects live venue wiring versus deterministic replay.
type BotMode string

const (
	BotModeLive     BotMode = "live"
	BotModeBacktest BotMode = "backtest"
)

// FlattenMode mirrors flatten.Mode in the config file's vocabulary.
type FlattenMode string

const (
	FlattenModeCancelOnly     FlattenMode = "cancel_only"
	FlattenModeCancelAndUnwind FlattenMode = "cancel_and_unwind"
)

// MarketConfig describes one tracked binary market.
type MarketConfig struct {
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	YesToken     uint32 `json:"yesToken"`
	NoToken      uint32 `json:"noToken"`
	TickSize     int64  `json:"tickSize"`
	MinOrderSize int64  `json:"minOrderSize"`
	FeeBps       int64  `json:"feeBps"`
}

// ThresholdConfig captures the values §9's "dynamic mutation of
// thresholds" open question allows to change without a restart.
type ThresholdConfig struct {
	MinEdgeBps    int64 `json:"minEdgeBps"`
	RequestedSize int64 `json:"requestedSize"`
}

// TTLConfig captures the various timeouts the engine enforces.
type TTLConfig struct {
	OrderTTLSecs       int64 `json:"orderTtlSecs"`
	UserStreamTimeout  int64 `json:"userStreamTimeoutSecs"`
	ChurnWindowSecs    int64 `json:"churnWindowSecs"`
	MaxChurnsPerWindow int   `json:"maxChurnsPerWindow"`
}

// FileConfig mirrors the JSON config layout on disk.
type FileConfig struct {
	Markets              []MarketConfig     `json:"markets"`
	LabelMode            string             `json:"labelMode"`
	Thresholds           ThresholdConfig    `json:"thresholds"`
	TTLs                 TTLConfig          `json:"ttls"`
	Breaker              risk.BreakerConfig `json:"breaker"`
	Flatten              FlattenMode        `json:"flattenMode"`
	MaxUnwindSlippageBps int64              `json:"maxUnwindSlippageBps"`
	UnwindDeadlineMs     int64              `json:"unwindDeadlineMs"`
}

// Loaded is the resolved, validated configuration ready for use.
type Loaded struct {
	Markets              []MarketConfig
	LabelMode            schema.LabelMode
	Thresholds           ThresholdConfig
	TTLs                 TTLConfig
	Breaker              risk.BreakerConfig
	Flatten              FlattenMode
	MaxUnwindSlippageBps int64
	UnwindDeadlineMs     int64
}

// Load reads a JSON config file and validates it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "unmarshal config")
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	if len(cfg.Markets) == 0 {
		return Loaded{}, errors.New("config: at least one market is required")
	}
	for _, m := range cfg.Markets {
		if m.ConditionID == "" {
			return Loaded{}, errors.New("config: market conditionId is empty")
		}
		if m.YesToken == 0 || m.NoToken == 0 {
			return Loaded{}, errors.Errorf("config: market %s missing yes/no token ids", m.ConditionID)
		}
	}
	if cfg.Thresholds.MinEdgeBps <= 0 {
		return Loaded{}, errors.New("config: thresholds.minEdgeBps must be > 0")
	}
	if cfg.Thresholds.RequestedSize <= 0 {
		return Loaded{}, errors.New("config: thresholds.requestedSize must be > 0")
	}
	if cfg.Flatten == "" {
		cfg.Flatten = FlattenModeCancelOnly
	}
	if cfg.TTLs.OrderTTLSecs <= 0 {
		cfg.TTLs.OrderTTLSecs = 30
	}
	if cfg.TTLs.UserStreamTimeout <= 0 {
		cfg.TTLs.UserStreamTimeout = 15
	}
	if cfg.TTLs.ChurnWindowSecs <= 0 {
		cfg.TTLs.ChurnWindowSecs = 60
	}
	if cfg.TTLs.MaxChurnsPerWindow <= 0 {
		cfg.TTLs.MaxChurnsPerWindow = 20
	}
	if cfg.UnwindDeadlineMs <= 0 {
		cfg.UnwindDeadlineMs = 30_000
	}
	labelMode := schema.LabelModeStrict
	if cfg.LabelMode == "permissive" {
		labelMode = schema.LabelModePermissive
	}
	return Loaded{
		Markets:              cfg.Markets,
		LabelMode:            labelMode,
		Thresholds:           cfg.Thresholds,
		TTLs:                 cfg.TTLs,
		Breaker:              cfg.Breaker,
		Flatten:              cfg.Flatten,
		MaxUnwindSlippageBps: cfg.MaxUnwindSlippageBps,
		UnwindDeadlineMs:     cfg.UnwindDeadlineMs,
	}, nil
}

// BuildRegistry seeds a market.Registry from the resolved config. The
// config names each market's yesToken and noToken explicitly, so both
// are registered with YES/NO labels.
func BuildRegistry(loaded Loaded) (*market.Registry, error) {
	reg := market.NewRegistry(loaded.LabelMode)
	for _, m := range loaded.Markets {
		spec := market.UpsertSpec{
			ConditionID:  m.ConditionID,
			Question:     m.Question,
			YesTokenID:   schema.TokenID(m.YesToken),
			NoTokenID:    schema.TokenID(m.NoToken),
			YesLabel:     "YES",
			NoLabel:      "NO",
			TickSize:     schema.Price(m.TickSize),
			MinOrderSize: schema.Quantity(m.MinOrderSize),
			FeeBps:       m.FeeBps,
			Active:       true,
		}
		if _, err := reg.Upsert(spec); err != nil {
			return nil, errors.Wrap(err, "seed market registry")
		}
	}
	return reg, nil
}

// RuntimeConfig is an atomically-swapped configuration record so the
// engine loop can read the latest thresholds without locking while a
// watcher goroutine applies file or command-driven updates.
type RuntimeConfig struct {
	v atomic.Value
}

// NewRuntimeConfig seeds the atomic value with an initial config.
func NewRuntimeConfig(loaded Loaded) *RuntimeConfig {
	rc := &RuntimeConfig{}
	rc.v.Store(loaded)
	return rc
}

// Load returns the current configuration snapshot.
func (r *RuntimeConfig) Load() Loaded {
	return r.v.Load().(Loaded)
}

// Update atomically swaps in a new configuration snapshot.
func (r *RuntimeConfig) Update(loaded Loaded) {
	r.v.Store(loaded)
}

// SetMinEdgeBps applies a live threshold mutation, e.g. from a
// SetMinEdge command, without touching the rest of the config.
func (r *RuntimeConfig) SetMinEdgeBps(bps int64) {
	cur := r.Load()
	cur.Thresholds.MinEdgeBps = bps
	r.Update(cur)
}

// Watch polls path's mtime on interval and reloads on change, applying
// the result via update. Runs until ctx is done.
func Watch(ctx context.Context, path string, interval time.Duration, update func(Loaded)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("config watch stat, err: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := Load(path)
			if err != nil {
				logs.Errorf("config watch reload, err: %+v", err)
				continue
			}
			update(loaded)
			lastMod = info.ModTime()
			logs.Infof("config reloaded: %s", path)
		}
	}
}

// EnvConfig captures the required environment variables per the
// external interfaces contract: venue endpoints, credentials, and
// operating mode switches.
type EnvConfig struct {
	VenueWSURL      string
	VenueRESTURL    string
	AncillaryAPIURL string
	ChainID         int64
	SigSchemeTag    string
	PrivateKey      string
	APIKey          string
	APISecret       string
	APIPassphrase   string
	DryRun          bool
	StartPaused     bool
	BotMode         BotMode
	DBPath          string
}

// LoadEnv reads and validates the required environment variables.
func LoadEnv() (EnvConfig, error) {
	get := func(key string) (string, error) {
		v := os.Getenv(key)
		if v == "" {
			return "", errors.Errorf("missing required environment variable: %s", key)
		}
		return v, nil
	}

	var cfg EnvConfig
	var err error
	if cfg.VenueWSURL, err = get("VENUE_WS_URL"); err != nil {
		return EnvConfig{}, err
	}
	if cfg.VenueRESTURL, err = get("VENUE_REST_URL"); err != nil {
		return EnvConfig{}, err
	}
	if cfg.AncillaryAPIURL, err = get("ANCILLARY_API_URL"); err != nil {
		return EnvConfig{}, err
	}
	chainIDStr, err := get("CHAIN_ID")
	if err != nil {
		return EnvConfig{}, err
	}
	cfg.ChainID, err = strconv.ParseInt(chainIDStr, 10, 64)
	if err != nil {
		return EnvConfig{}, errors.Wrap(err, "parse CHAIN_ID")
	}
	if cfg.SigSchemeTag, err = get("SIGNATURE_SCHEME"); err != nil {
		return EnvConfig{}, err
	}
	if cfg.PrivateKey, err = get("PRIVATE_KEY"); err != nil {
		return EnvConfig{}, err
	}
	if cfg.APIKey, err = get("API_KEY"); err != nil {
		return EnvConfig{}, err
	}
	if cfg.APISecret, err = get("API_SECRET"); err != nil {
		return EnvConfig{}, err
	}
	if cfg.APIPassphrase, err = get("API_PASSPHRASE"); err != nil {
		return EnvConfig{}, err
	}
	if cfg.DBPath, err = get("DB_PATH"); err != nil {
		return EnvConfig{}, err
	}
	botMode, err := get("BOT_MODE")
	if err != nil {
		return EnvConfig{}, err
	}
	switch BotMode(botMode) {
	case BotModeLive, BotModeBacktest:
		cfg.BotMode = BotMode(botMode)
	default:
		return EnvConfig{}, errors.Errorf("invalid BOT_MODE: %s", botMode)
	}
	cfg.DryRun = parseBoolEnv("DRY_RUN")
	cfg.StartPaused = parseBoolEnv("START_PAUSED")
	return cfg, nil
}

func parseBoolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return v
}

// RedactedFields lists the field names whose values are replaced by a
// fixed token before a log line is written.
var RedactedFields = map[string]struct{}{
	"private_key": {}, "secret": {}, "passphrase": {}, "api_key": {}, "signature": {},
}

const redactedToken = "***REDACTED***"

// Redact scrubs sensitive field values from a structured log field map
// in place, matching field names case-insensitively.
func Redact(fields map[string]any) {
	for k := range fields {
		if _, sensitive := RedactedFields[normalizeFieldName(k)]; sensitive {
			fields[k] = redactedToken
		}
	}
}

func normalizeFieldName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
