// Package events publishes position lifecycle events for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/types"
)

type Kind string

const (
	KindPositionOpened Kind = "position_opened"
	KindStopTrailed    Kind = "stop_trailed"
	KindPositionClosed Kind = "position_closed"
)

// Event is the JSON payload published for every lifecycle change of a position.
type Event struct {
	Kind     Kind                `json:"kind"`
	Account  string              `json:"account"`
	Time     time.Time           `json:"time"`
	Position *types.Position     `json:"position,omitempty"`
	Trade    *types.TradeRecord  `json:"trade,omitempty"`
	Signal   *types.Signal       `json:"signal,omitempty"`
	Strategy *types.StrategyInfo `json:"strategy,omitempty"`
}

// Publisher sends events. Implementations are safe for concurrent use by all account loops.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// PositionOpened builds the event for a newly opened position and the signal that opened it.
func PositionOpened(account string, p types.Position, signal types.Signal) Event {
	return Event{
		Kind:     KindPositionOpened,
		Account:  account,
		Time:     p.OpenedAt,
		Position: &p,
		Signal:   &signal,
	}
}

// StopTrailed builds the event for a ratcheted stop.
func StopTrailed(account string, p types.Position, at time.Time) Event {
	return Event{
		Kind:     KindStopTrailed,
		Account:  account,
		Time:     at,
		Position: &p,
	}
}

// PositionClosed builds the event for a closed trade.
func PositionClosed(account string, record types.TradeRecord) Event {
	return Event{
		Kind:    KindPositionClosed,
		Account: account,
		Time:    record.ClosedAt,
		Trade:   &record,
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
