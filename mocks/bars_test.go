package mocks

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/stretchr/testify/suite"
)

type BarGeneratorTestSuite struct {
	suite.Suite
}

func TestBarGeneratorSuite(t *testing.T) {
	suite.Run(t, new(BarGeneratorTestSuite))
}

func (suite *BarGeneratorTestSuite) TestGenerateIsOrderedAndConsistent() {
	config := DefaultBarConfig()
	config.Count = 100

	bars := NewBarGenerator(42).Generate(config)
	suite.Require().Len(bars, 100)
	suite.Equal(config.End, bars[len(bars)-1].Time)

	for i, bar := range bars {
		suite.Equal(config.Instrument, bar.Symbol)
		suite.Positive(bar.Low)
		suite.GreaterOrEqual(bar.High, bar.Low)
		suite.GreaterOrEqual(bar.High, bar.Close)
		suite.LessOrEqual(bar.Low, bar.Close)

		if i > 0 {
			suite.Equal(time.Hour, bar.Time.Sub(bars[i-1].Time))
		}
	}
}

func (suite *BarGeneratorTestSuite) TestSameSeedSameBars() {
	config := DefaultBarConfig()
	config.Count = 20

	suite.Equal(NewBarGenerator(7).Generate(config), NewBarGenerator(7).Generate(config))
	suite.NotEqual(NewBarGenerator(7).Generate(config), NewBarGenerator(8).Generate(config))
}

func (suite *BarGeneratorTestSuite) TestRamp() {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := Ramp("ETHUSDT", types.Timeframe15m, end, 5, 100, 104)

	suite.Require().Len(bars, 5)
	suite.Equal(end.Add(-time.Hour), bars[0].Time)
	suite.Equal(100.0, bars[0].Close)
	suite.Equal(101.0, bars[1].Close)
	suite.Equal(101.0, bars[2].Open)
	suite.Equal(104.0, bars[4].Close)
}
