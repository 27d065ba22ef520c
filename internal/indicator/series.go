package indicator

import "math"

// EMASeries computes an exponential moving average over values.
// The first defined value, at index period-1, is the simple average of the first
// period values. After that EMA = value*alpha + prev*(1-alpha) with alpha = 2/(period+1),
// matching pandas ewm(span=period, adjust=False) once seeded.
// NaN inputs before the first finite value are skipped.
func EMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}

	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}

	if len(values)-start < period {
		return out
	}

	sma := 0.0
	for i := start; i < start+period; i++ {
		sma += values[i]
	}

	sma /= float64(period)

	alpha := 2.0 / float64(period+1)
	ema := sma
	out[start+period-1] = ema

	for i := start + period; i < len(values); i++ {
		ema = (values[i] * alpha) + (ema * (1 - alpha))
		out[i] = ema
	}

	return out
}

// SMASeries computes a rolling simple average.
func SMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}

		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}

	return out
}

// StdDevSeries computes the rolling population standard deviation.
func StdDevSeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += values[j]
		}

		mean /= float64(period)

		sq := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			sq += d * d
		}

		out[i] = math.Sqrt(sq / float64(period))
	}

	return out
}

// RSISeries computes the relative strength index with Wilder smoothing.
// The first value is defined at index period.
func RSISeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0

	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}

	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0

		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}

	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}

		return 100
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}

// TrueRangeSeries computes max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func TrueRangeSeries(high, low, closePrices []float64) []float64 {
	out := make([]float64, len(high))

	for i := range high {
		tr := high[i] - low[i]
		if i > 0 {
			tr = math.Max(tr, math.Max(math.Abs(high[i]-closePrices[i-1]), math.Abs(low[i]-closePrices[i-1])))
		}

		out[i] = tr
	}

	return out
}

// Last returns the last value of a series and whether it is defined.
func Last(series []float64) (float64, bool) {
	return At(series, len(series)-1)
}

// At returns series[i] and whether it is defined.
func At(series []float64, i int) (float64, bool) {
	if i < 0 || i >= len(series) {
		return 0, false
	}

	v := series[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return v, true
}
