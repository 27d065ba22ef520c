package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SignalTestSuite struct {
	suite.Suite
}

func TestSignalSuite(t *testing.T) {
	suite.Run(t, new(SignalTestSuite))
}

func (suite *SignalTestSuite) TestNewFlatSignal() {
	signal := NewFlatSignal("insufficient data on 5m")
	suite.True(signal.IsFlat())
	suite.Zero(signal.Strength)
	suite.Zero(signal.Confidence)
	suite.Equal([]string{"insufficient data on 5m"}, signal.Reasons)
	suite.NotNil(signal.Indicators)
	suite.NotNil(signal.Metadata)
}

func (suite *SignalTestSuite) TestNewSignalMirrorsConfidence() {
	signal := NewSignal(ActionLong, 0.72, []string{"ema cross up"}, map[string]float64{"ema_9": 101})
	suite.Equal(ActionLong, signal.Action)
	suite.InDelta(0.72, signal.Strength, 1e-12)
	suite.InDelta(0.72, signal.Confidence, 1e-12)
	suite.Equal(101.0, signal.Indicators["ema_9"])
}

func (suite *SignalTestSuite) TestNormalizeFlatInvariant() {
	tests := []struct {
		name       string
		input      Signal
		wantAction Action
		wantZero   bool
	}{
		{
			name:       "flat with leftover strength",
			input:      Signal{Action: ActionFlat, Strength: 0.4, Confidence: 0.3},
			wantAction: ActionFlat,
			wantZero:   true,
		},
		{
			name:       "long with zero strength",
			input:      Signal{Action: ActionLong, Strength: 0, Confidence: 0.5},
			wantAction: ActionFlat,
			wantZero:   true,
		},
		{
			name:       "negative strength clamps to flat",
			input:      Signal{Action: ActionShort, Strength: -0.3, Confidence: 0.2},
			wantAction: ActionFlat,
			wantZero:   true,
		},
		{
			name:       "NaN strength clamps to flat",
			input:      Signal{Action: ActionLong, Strength: math.NaN(), Confidence: 0.2},
			wantAction: ActionFlat,
			wantZero:   true,
		},
		{
			name:       "unknown action",
			input:      Signal{Action: Action("buy"), Strength: 0.9, Confidence: 0.9},
			wantAction: ActionFlat,
			wantZero:   true,
		},
		{
			name:       "strength above one clamps",
			input:      Signal{Action: ActionShort, Strength: 1.4, Confidence: 1.2},
			wantAction: ActionShort,
			wantZero:   false,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			out := tc.input.Normalize()
			suite.Equal(tc.wantAction, out.Action)

			if tc.wantZero {
				suite.Zero(out.Strength)
				suite.Zero(out.Confidence)
			} else {
				suite.Equal(1.0, out.Strength)
				suite.Equal(1.0, out.Confidence)
			}

			suite.Equal(out.Action == ActionFlat, out.Strength == 0 && out.Confidence == 0)
		})
	}
}

func (suite *SignalTestSuite) TestNormalizeDoesNotAliasReasons() {
	original := Signal{Action: ActionLong, Strength: 0.5, Confidence: 0.5, Reasons: []string{"a"}}
	out := original.Normalize()
	out.Reasons[0] = "changed"
	suite.Equal("a", original.Reasons[0])
}

func (suite *SignalTestSuite) TestOpposes() {
	long := NewSignal(ActionLong, 0.8, nil, nil)
	short := NewSignal(ActionShort, 0.8, nil, nil)
	flat := NewFlatSignal()

	suite.True(short.Opposes(SideLong))
	suite.True(long.Opposes(SideShort))
	suite.False(long.Opposes(SideLong))
	suite.False(flat.Opposes(SideLong))
	suite.False(flat.Opposes(SideShort))
}

func (suite *SignalTestSuite) TestActionSide() {
	side, ok := ActionLong.Side()
	suite.True(ok)
	suite.Equal(SideLong, side)

	side, ok = ActionShort.Side()
	suite.True(ok)
	suite.Equal(SideShort, side)

	_, ok = ActionFlat.Side()
	suite.False(ok)
}
