// Package command implements the command bus: a single-writer queue of
// operator-issued control commands, validated and applied between
// event-loop steps. Generalises the teacher's ops.Load + watchConfig
// hot-reload pair into the full command set.
package command

import (
	"github.com/yanun0323/errors"
	"github.com/yanun0323/polyarb/internal/bus"
	"github.com/yanun0323/polyarb/internal/schema"
)

// ErrUnknownCommand is returned by Validate for a command type the bus
// does not recognize.
var ErrUnknownCommand = errors.New("unknown command type")

// ErrMissingMarket is returned when a per-market command omits its
// target market id.
var ErrMissingMarket = errors.New("command missing market id")

// Bus wraps a bounded queue of pending commands, drained by the core
// loop between processing steps.
type Bus struct {
	queue *bus.Queue
}

// NewBus constructs a command bus with the given queue capacity.
func NewBus(capacity int) *Bus {
	return &Bus{queue: bus.NewQueue(capacity)}
}

// ErrEmptySettings is returned when a generalized CommandSet carries no
// keys to update.
var ErrEmptySettings = errors.New("set command has no settings")

// ErrInvalidSetting is returned when a CommandSet key or value fails
// bounds validation.
var ErrInvalidSetting = errors.New("invalid setting value")

// ErrEmptyMarketList is returned when a MarketsOn/MarketsOff command
// names no markets.
var ErrEmptyMarketList = errors.New("command missing market ids")

// Validate checks that a command is well-formed before it is admitted
// to the queue.
func Validate(cmd schema.Command) error {
	switch cmd.Type {
	case schema.CommandPause, schema.CommandResume, schema.CommandFlatten,
		schema.CommandKillSwitch, schema.CommandReloadConfig, schema.CommandBacktest:
		return nil
	case schema.CommandFlattenMarket:
		if cmd.MarketID == 0 {
			return ErrMissingMarket
		}
		return nil
	case schema.CommandSetMinEdge:
		if cmd.MarketID == 0 {
			return ErrMissingMarket
		}
		return nil
	case schema.CommandSet:
		return validateSettings(cmd.Settings)
	case schema.CommandMarketsOn, schema.CommandMarketsOff:
		if len(cmd.MarketIDs) == 0 {
			return ErrEmptyMarketList
		}
		return nil
	default:
		return ErrUnknownCommand
	}
}

// validateSettings rejects an atomic multi-key update if any key is
// unrecognized or any value falls outside its sane range; the update
// is applied only if every key passes, so a single bad key must fail
// the whole command rather than silently applying the rest.
func validateSettings(settings map[schema.SettingKey]int64) error {
	if len(settings) == 0 {
		return ErrEmptySettings
	}
	for k, v := range settings {
		switch k {
		case schema.SettingMinEdgeBps:
			if v <= 0 || v > 10_000 {
				return ErrInvalidSetting
			}
		case schema.SettingRequestedSize:
			if v <= 0 {
				return ErrInvalidSetting
			}
		default:
			return ErrInvalidSetting
		}
	}
	return nil
}

// Submit validates and enqueues a command for the core loop.
func (b *Bus) Submit(cmd schema.Command) error {
	if err := Validate(cmd); err != nil {
		return err
	}
	return b.queue.TryPublish(bus.Event{
		Header:  schema.NewHeader(schema.EventCommand, 0, 0, cmd.IssuedAt, cmd.IssuedAt),
		Payload: encode(cmd),
	})
}

// Drain pulls up to max pending commands off the queue without
// blocking, for the core loop to apply on its own goroutine between
// event-loop steps.
func (b *Bus) Drain(max int) []schema.Command {
	var out []schema.Command
	for i := 0; i < max; i++ {
		e, ok := b.queue.TryReceive()
		if !ok {
			return out
		}
		if cmd, ok := decode(e.Payload); ok {
			out = append(out, cmd)
		}
	}
	return out
}

// Close stops the bus from accepting new commands.
func (b *Bus) Close() {
	b.queue.Close()
}
