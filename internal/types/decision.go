package types

import "fmt"

// BlockReason names why an order was not placed.
type BlockReason string

const (
	BlockReasonInsufficientBalance BlockReason = "insufficient_balance"
	BlockReasonMaxPositions        BlockReason = "max_positions"
	BlockReasonDuplicatePosition   BlockReason = "duplicate_position"
	BlockReasonAccountCritical     BlockReason = "account_critical"
	BlockReasonBelowMinStrength    BlockReason = "below_min_strength"
	BlockReasonSideDisabled        BlockReason = "side_disabled"
	BlockReasonInvalidSize         BlockReason = "invalid_size"
	BlockReasonFlatSignal          BlockReason = "flat_signal"
)

// Decision is the outcome of a capacity or risk check.
// A blocked decision is a normal outcome, not an error.
type Decision struct {
	Blocked bool        `json:"blocked" yaml:"blocked"`
	Reason  BlockReason `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message string      `json:"message,omitempty" yaml:"message,omitempty"`
}

// Allow returns a non-blocking decision.
func Allow() Decision {
	return Decision{Blocked: false, Reason: "", Message: ""}
}

// Block returns a blocking decision with a formatted explanation.
func Block(reason BlockReason, format string, args ...any) Decision {
	return Decision{Blocked: true, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (d Decision) String() string {
	if !d.Blocked {
		return "allowed"
	}

	return fmt.Sprintf("blocked (%s): %s", d.Reason, d.Message)
}
