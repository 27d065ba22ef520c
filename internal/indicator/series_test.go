package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SeriesTestSuite struct {
	suite.Suite
}

func TestSeriesSuite(t *testing.T) {
	suite.Run(t, new(SeriesTestSuite))
}

func (suite *SeriesTestSuite) TestEMASeriesSeedsWithSMA() {
	values := []float64{1, 2, 3, 4, 5}
	ema := EMASeries(values, 3)

	suite.True(math.IsNaN(ema[0]))
	suite.True(math.IsNaN(ema[1]))
	suite.InDelta(2.0, ema[2], 1e-12)
	// alpha = 0.5
	suite.InDelta(3.0, ema[3], 1e-12)
	suite.InDelta(4.0, ema[4], 1e-12)
}

func (suite *SeriesTestSuite) TestEMASeriesSkipsLeadingNaN() {
	values := []float64{math.NaN(), math.NaN(), 2, 4, 6}
	ema := EMASeries(values, 2)

	suite.True(math.IsNaN(ema[2]))
	suite.InDelta(3.0, ema[3], 1e-12)
	// alpha = 2/3
	suite.InDelta(5.0, ema[4], 1e-12)
}

func (suite *SeriesTestSuite) TestEMASeriesShortInput() {
	ema := EMASeries([]float64{1, 2}, 5)
	for _, v := range ema {
		suite.True(math.IsNaN(v))
	}
}

func (suite *SeriesTestSuite) TestSMASeries() {
	sma := SMASeries([]float64{2, 4, 6, 8}, 2)
	suite.True(math.IsNaN(sma[0]))
	suite.Equal([]float64{3, 5, 7}, sma[1:])
}

func (suite *SeriesTestSuite) TestStdDevSeries() {
	sd := StdDevSeries([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	suite.InDelta(2.0, sd[7], 1e-12)
}

func (suite *SeriesTestSuite) TestRSISeries() {
	up := []float64{1, 2, 3, 4, 5, 6}
	suite.Equal(100.0, RSISeries(up, 3)[5])

	down := []float64{6, 5, 4, 3, 2, 1}
	suite.InDelta(0.0, RSISeries(down, 3)[5], 1e-12)

	flat := []float64{5, 5, 5, 5}
	suite.Equal(50.0, RSISeries(flat, 3)[3])

	mixed := []float64{10, 11, 10, 11, 10}
	rsi := RSISeries(mixed, 2)
	suite.True(math.IsNaN(rsi[1]))
	suite.InDelta(50.0, rsi[2], 1e-12)
}

func (suite *SeriesTestSuite) TestTrueRangeSeries() {
	high := []float64{10, 12, 11}
	low := []float64{8, 11, 7}
	closePrices := []float64{9, 11.5, 8}

	tr := TrueRangeSeries(high, low, closePrices)
	suite.Equal([]float64{2, 3, 4.5}, tr)
}

func (suite *SeriesTestSuite) TestAtAndLast() {
	series := []float64{math.NaN(), 1, math.Inf(1)}

	_, ok := At(series, 0)
	suite.False(ok)

	v, ok := At(series, 1)
	suite.True(ok)
	suite.Equal(1.0, v)

	_, ok = Last(series)
	suite.False(ok)

	_, ok = At(series, 5)
	suite.False(ok)

	_, ok = Last(nil)
	suite.False(ok)
}
