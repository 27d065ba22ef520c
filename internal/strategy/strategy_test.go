package strategy

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
	"github.com/stretchr/testify/suite"
)

// table builds a table whose closes and indicator columns are given explicitly.
// Every column must have len(closes) values.
func table(tf types.Timeframe, closes []float64, cols map[string][]float64) marketdata.Table {
	bars := make([]types.MarketData, len(closes))
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, c := range closes {
		bars[i] = types.MarketData{
			Symbol: "BTCUSDT",
			Time:   t0.Add(time.Duration(i) * tf.Duration()),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1,
		}
	}

	return marketdata.NewTable("BTCUSDT", tf, bars).WithColumns(cols)
}

// pair is a two-bar column: previous then current.
func pair(prev, now float64) []float64 {
	return []float64{prev, now}
}

type StrategyTestSuite struct {
	suite.Suite
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) TestTrendStrength() {
	suite.InDelta(0.1, trendStrength(101, 100, 102), 1e-9)
	suite.InDelta(1.0, trendStrength(120, 100, 121), 1e-9)
	// price below the slow average while fast is above it
	suite.Equal(0.0, trendStrength(101, 100, 99))
	suite.InDelta(0.2, trendStrength(98, 100, 97), 1e-9)
	suite.Equal(0.0, trendStrength(0, 100, 97))
}

func (suite *StrategyTestSuite) TestDecodeParamsMergesOverDefaults() {
	p, err := decodeParams("test", Params{"min_strength": 0.8}, DefaultEMACrossoverParams())
	suite.NoError(err)
	suite.Equal(0.8, p.MinStrength)
	suite.Equal(9, p.FastPeriod)
	suite.Equal(21, p.SlowPeriod)
}

func (suite *StrategyTestSuite) TestDecodeParamsRejectsUnknownAndInvalid() {
	_, err := decodeParams("test", Params{"fast": 3}, DefaultEMACrossoverParams())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))

	_, err = decodeParams("test", Params{"fast_period": 30}, DefaultEMACrossoverParams())
	suite.Error(err, "slow period must exceed fast period")

	_, err = decodeParams("test", Params{"min_strength": "high"}, DefaultEMACrossoverParams())
	suite.Error(err)
}

func (suite *StrategyTestSuite) TestBuiltinsReturnFlatOnMissingData() {
	catalog := DefaultCatalog()

	for _, d := range catalog.List() {
		s, err := catalog.New(d.ID, nil)
		suite.Require().NoError(err)

		signal := s.Analyze(marketdata.Frames{}, 100)
		suite.Equal(types.ActionFlat, signal.Action, d.ID)
		suite.Zero(signal.Strength, d.ID)
		suite.Zero(signal.Confidence, d.ID)
		suite.NotEmpty(signal.Reasons, d.ID)
		suite.Equal(d.ID, signal.Metadata["strategy"])
	}
}

func (suite *StrategyTestSuite) TestBuiltinsReturnFlatOnMissingColumns() {
	catalog := DefaultCatalog()
	closes := []float64{100, 101}
	frames := marketdata.Frames{
		types.Timeframe5m: table(types.Timeframe5m, closes, nil),
		types.Timeframe1h: table(types.Timeframe1h, closes, nil),
		types.Timeframe4h: table(types.Timeframe4h, closes, nil),
	}

	for _, id := range []string{EMACrossoverID, MACDMomentumID, RSIReversionID, CombinedID, SupportResistanceID} {
		s, err := catalog.New(id, nil)
		suite.Require().NoError(err)

		signal := s.Analyze(frames, 101)
		suite.True(signal.IsFlat(), id)
		suite.Zero(signal.Strength, id)
	}
}
