package combiner

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
	"github.com/stretchr/testify/suite"
)

type CombinerTestSuite struct {
	suite.Suite
	combiner *Combiner
}

func TestCombinerSuite(t *testing.T) {
	suite.Run(t, new(CombinerTestSuite))
}

func (suite *CombinerTestSuite) SetupTest() {
	c, err := New(DefaultConfig())
	suite.Require().NoError(err)
	suite.combiner = c
}

type frameSpec struct {
	closes        [2]float64
	ema9, ema21   [2]float64
	ema200        float64
	macd, macdSig [2]float64
	rsi           float64
}

func frame(tf types.Timeframe, s frameSpec) marketdata.Table {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.MarketData, 2)

	for i, c := range s.closes {
		bars[i] = types.MarketData{Symbol: "BTCUSDT", Time: t0.Add(time.Duration(i) * tf.Duration()), Open: c, High: c + 1, Low: c - 1, Close: c}
	}

	return marketdata.NewTable("BTCUSDT", tf, bars).WithColumns(map[string][]float64{
		"ema_9":       s.ema9[:],
		"ema_21":      s.ema21[:],
		"ema_200":     {s.ema200, s.ema200},
		"macd":        s.macd[:],
		"macd_signal": s.macdSig[:],
		"rsi":         {s.rsi, s.rsi},
	})
}

func (suite *CombinerTestSuite) TestDecide() {
	tests := []struct {
		name     string
		bull     float64
		bear     float64
		action   types.Action
		strength float64
	}{
		{"tie is flat", 0.6, 0.6, types.ActionFlat, 0},
		{"bullish", 0.6, 0.4, types.ActionLong, 0.6},
		{"bearish", 0.2, 0.7, types.ActionShort, 0.7},
		{"threshold is exclusive", 0.5, 0.1, types.ActionFlat, 0},
		{"both weak", 0.3, 0.2, types.ActionFlat, 0},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			action, strength := suite.combiner.Decide(tt.bull, tt.bear)
			suite.Equal(tt.action, action)
			suite.Equal(tt.strength, strength)
		})
	}
}

func (suite *CombinerTestSuite) TestNewRejectsBadWeights() {
	cfg := DefaultConfig()
	cfg.Weights = map[types.Horizon]float64{types.HorizonShort: 0.3, types.HorizonMedium: 0.3, types.HorizonLong: 0.3}

	_, err := New(cfg)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidWeights))

	cfg.Weights = map[types.Horizon]float64{types.HorizonShort: 1.2, types.HorizonLong: -0.2}
	_, err = New(cfg)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidWeights))

	cfg = DefaultConfig()
	delete(cfg.Horizons, types.HorizonLong)
	_, err = New(cfg)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidWeights))

	cfg = DefaultConfig()
	cfg.Weights = map[types.Horizon]float64{types.HorizonShort: 0.1 + 0.2, types.HorizonMedium: 0.3, types.HorizonLong: 0.4}
	_, err = New(cfg)
	suite.NoError(err, "float rounding within tolerance")
}

func (suite *CombinerTestSuite) TestEMACrossoverWithUptrendIsLong() {
	frames := marketdata.Frames{
		// EMA9 crosses above EMA21 on a rising 5m series
		types.Timeframe5m: frame(types.Timeframe5m, frameSpec{
			closes: [2]float64{100.5, 101.5}, ema9: [2]float64{99.8, 101}, ema21: [2]float64{100, 100},
			ema200: 95, macd: [2]float64{0.1, 0.3}, macdSig: [2]float64{0.2, 0.2}, rsi: 58,
		}),
		types.Timeframe1h: frame(types.Timeframe1h, frameSpec{
			closes: [2]float64{105, 106}, ema9: [2]float64{104, 105}, ema21: [2]float64{100, 100},
			ema200: 90, macd: [2]float64{1, 1.2}, macdSig: [2]float64{0.5, 0.6}, rsi: 60,
		}),
		types.Timeframe4h: frame(types.Timeframe4h, frameSpec{
			closes: [2]float64{105, 106}, ema9: [2]float64{104, 105}, ema21: [2]float64{100, 100},
			ema200: 90, macd: [2]float64{1, 1.2}, macdSig: [2]float64{0.5, 0.6}, rsi: 60,
		}),
	}

	signal := suite.combiner.Analyze(frames, 101.5)

	suite.Equal(types.ActionLong, signal.Action)
	suite.GreaterOrEqual(signal.Strength, 0.5)
	// 5m: 0.2+0.2+0.3+0.3, 1h and 4h: 0.2+0.2+0.2+0.3
	suite.InDelta(0.3*1.0+0.3*0.9+0.4*0.9, signal.Strength, 1e-9)
	suite.Equal(signal.Strength, signal.Confidence)
	suite.Equal(ID, signal.Metadata["strategy"])
}

func (suite *CombinerTestSuite) TestDowntrendIsShort() {
	spec := frameSpec{
		closes: [2]float64{95, 94}, ema9: [2]float64{96, 95}, ema21: [2]float64{100, 100},
		ema200: 110, macd: [2]float64{-1, -1.2}, macdSig: [2]float64{-0.5, -0.6}, rsi: 40,
	}
	frames := marketdata.Frames{
		types.Timeframe5m: frame(types.Timeframe5m, spec),
		types.Timeframe1h: frame(types.Timeframe1h, spec),
		types.Timeframe4h: frame(types.Timeframe4h, spec),
	}

	signal := suite.combiner.Analyze(frames, 94)

	suite.Equal(types.ActionShort, signal.Action)
	suite.InDelta(0.9, signal.Strength, 1e-9)
}

func (suite *CombinerTestSuite) TestConflictingTimeframesAreFlat() {
	up := frameSpec{
		closes: [2]float64{105, 106}, ema9: [2]float64{104, 105}, ema21: [2]float64{100, 100},
		ema200: 90, macd: [2]float64{1, 1.2}, macdSig: [2]float64{0.5, 0.6}, rsi: 60,
	}
	down := frameSpec{
		closes: [2]float64{95, 94}, ema9: [2]float64{96, 95}, ema21: [2]float64{100, 100},
		ema200: 110, macd: [2]float64{-1, -1.2}, macdSig: [2]float64{-0.5, -0.6}, rsi: 40,
	}
	frames := marketdata.Frames{
		types.Timeframe5m: frame(types.Timeframe5m, up),
		types.Timeframe1h: frame(types.Timeframe1h, up),
		types.Timeframe4h: frame(types.Timeframe4h, down),
	}

	signal := suite.combiner.Analyze(frames, 100)

	// bullish 0.54 vs bearish 0.36
	suite.Equal(types.ActionLong, signal.Action)
	suite.InDelta(0.54, signal.Strength, 1e-9)

	neutral := up
	neutral.ema9 = [2]float64{100, 100}
	frames[types.Timeframe1h] = frame(types.Timeframe1h, down)
	frames[types.Timeframe4h] = frame(types.Timeframe4h, neutral)
	signal = suite.combiner.Analyze(frames, 100)

	// 0.27 on both sides
	suite.InDelta(signal.Indicators["bullish_score"], signal.Indicators["bearish_score"], 1e-9)
	suite.True(signal.IsFlat())
	suite.Zero(signal.Strength)
	suite.Zero(signal.Confidence)
}

func (suite *CombinerTestSuite) TestScoreTimeframeMissingColumns() {
	table := marketdata.NewTable("BTCUSDT", types.Timeframe5m, []types.MarketData{{Close: 1}, {Close: 2}})

	score := suite.combiner.ScoreTimeframe(table)
	suite.Zero(score.Bullish)
	suite.Zero(score.Bearish)
	suite.Equal(types.ActionFlat, score.Trend)
	suite.NotEmpty(score.Reasons)
}

func (suite *CombinerTestSuite) TestNoDataIsFlat() {
	signal := suite.combiner.Analyze(marketdata.Frames{}, 100)

	suite.True(signal.IsFlat())
	suite.Contains(signal.Reasons[0], "insufficient data")
}

func (suite *CombinerTestSuite) TestDescriptor() {
	d := suite.combiner.Descriptor()

	suite.Equal(ID, d.ID)
	suite.Equal([]types.Timeframe{types.Timeframe5m, types.Timeframe1h, types.Timeframe4h}, d.Timeframes)
	suite.Len(d.Indicators, 3)
}
