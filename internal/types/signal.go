package types

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Action is the direction a signal proposes.
type Action string

const (
	// ActionLong proposes opening or holding a long position
	ActionLong Action = "long"
	// ActionShort proposes opening or holding a short position
	ActionShort Action = "short"
	// ActionFlat proposes no exposure
	ActionFlat Action = "flat"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionLong, ActionShort, ActionFlat:
		return true
	default:
		return false
	}
}

// Side maps a directional action to the position side it would open.
// Flat has no side and returns false.
func (a Action) Side() (Side, bool) {
	switch a {
	case ActionLong:
		return SideLong, true
	case ActionShort:
		return SideShort, true
	default:
		return "", false
	}
}

// Signal is the output of a strategy evaluation.
// A Signal is built fresh on every evaluation and must not be mutated after it is returned.
type Signal struct {
	// Action is the proposed direction
	Action Action `json:"action" yaml:"action"`
	// Strength is in [0,1]
	Strength float64 `json:"strength" yaml:"strength"`
	// Confidence is in [0,1]
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Reasons explains the decision in evaluation order
	Reasons []string `json:"reasons" yaml:"reasons"`
	// Indicators holds the indicator values the decision was based on
	Indicators map[string]float64 `json:"indicators" yaml:"indicators"`
	// Metadata is opaque to consumers
	Metadata map[string]any `json:"metadata" yaml:"metadata"`
	// Time is when the signal was produced. Not part of the wire format.
	Time time.Time `json:"-" yaml:"-"`
}

// NewFlatSignal returns a flat signal carrying the given reasons.
func NewFlatSignal(reasons ...string) Signal {
	return Signal{
		Action:     ActionFlat,
		Strength:   0,
		Confidence: 0,
		Reasons:    append([]string{}, reasons...),
		Indicators: map[string]float64{},
		Metadata:   map[string]any{},
		Time:       time.Time{},
	}
}

// NewSignal builds a normalized signal. Confidence mirrors strength.
func NewSignal(action Action, strength float64, reasons []string, indicators map[string]float64) Signal {
	if indicators == nil {
		indicators = map[string]float64{}
	}

	return Signal{
		Action:     action,
		Strength:   strength,
		Confidence: strength,
		Reasons:    append([]string{}, reasons...),
		Indicators: indicators,
		Metadata:   map[string]any{},
		Time:       time.Time{},
	}.Normalize()
}

// IsFlat reports whether the signal proposes no exposure.
func (s Signal) IsFlat() bool {
	return s.Action == ActionFlat
}

// Opposes reports whether s proposes the opposite direction of side.
func (s Signal) Opposes(side Side) bool {
	switch side {
	case SideLong:
		return s.Action == ActionShort
	case SideShort:
		return s.Action == ActionLong
	default:
		return false
	}
}

// Normalize returns a copy that satisfies the flat invariant:
// a flat signal has zero strength and confidence, and a directional signal with
// no strength left after clamping becomes flat.
func (s Signal) Normalize() Signal {
	out := s
	out.Reasons = slices.Clone(s.Reasons)

	if out.Reasons == nil {
		out.Reasons = []string{}
	}

	if out.Indicators == nil {
		out.Indicators = map[string]float64{}
	}

	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}

	if !out.Action.Valid() {
		out.Reasons = append(out.Reasons, fmt.Sprintf("unknown action %q flattened", s.Action))
		out.Action = ActionFlat
	}

	out.Strength = clampUnit(out.Strength)
	out.Confidence = clampUnit(out.Confidence)

	if out.Action == ActionFlat {
		out.Strength = 0
		out.Confidence = 0

		return out
	}

	if out.Strength == 0 {
		out.Action = ActionFlat
		out.Confidence = 0
		out.Reasons = append(out.Reasons, "zero strength flattened")
	}

	return out
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
