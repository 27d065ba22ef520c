package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// wireSignal mirrors the wire format. Pointers distinguish absent keys from zero values.
type wireSignal struct {
	Action     *string            `json:"action"`
	Strength   *float64           `json:"strength"`
	Confidence *float64           `json:"confidence"`
	Reasons    []string           `json:"reasons"`
	Indicators map[string]float64 `json:"indicators"`
	Metadata   map[string]any     `json:"metadata"`
}

// EncodeSignal writes the signal in its wire format.
func EncodeSignal(s Signal) ([]byte, error) {
	data, err := json.Marshal(s.Normalize())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSignal, "failed to encode signal", err)
	}

	return data, nil
}

// DecodeSignal parses a wire-format signal.
//
// Payloads that are not a JSON object of the expected shape (syntax errors, wrong
// value types, unknown keys) are rejected with ErrCodeInvalidSignal. Payloads that
// parse but carry values outside their domain are flattened, and the returned
// signal explains why in its reasons.
func DecodeSignal(data []byte) (Signal, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var w wireSignal
	if err := decoder.Decode(&w); err != nil {
		return Signal{}, errors.Wrap(errors.ErrCodeInvalidSignal, "malformed signal payload", err)
	}

	if decoder.More() {
		return Signal{}, errors.New(errors.ErrCodeInvalidSignal, "trailing data after signal payload")
	}

	return fromWire(w), nil
}

func fromWire(w wireSignal) Signal {
	reasons := append([]string{}, w.Reasons...)

	if w.Action == nil {
		return NewFlatSignal(append(reasons, "missing action")...)
	}

	action := Action(*w.Action)
	if !action.Valid() {
		return NewFlatSignal(append(reasons, fmt.Sprintf("unknown action %q", *w.Action))...)
	}

	strength, ok := unitValue(w.Strength)
	if !ok {
		return NewFlatSignal(append(reasons, "strength outside [0,1]")...)
	}

	confidence, ok := unitValue(w.Confidence)
	if !ok {
		return NewFlatSignal(append(reasons, "confidence outside [0,1]")...)
	}

	signal := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: confidence,
		Reasons:    reasons,
		Indicators: w.Indicators,
		Metadata:   w.Metadata,
	}

	return signal.Normalize()
}

// unitValue treats an absent value as zero and rejects anything outside [0,1].
func unitValue(v *float64) (float64, bool) {
	if v == nil {
		return 0, true
	}

	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return 0, false
	}

	return *v, true
}
