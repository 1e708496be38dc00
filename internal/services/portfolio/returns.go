package portfolio

import "math"

// LogReturns computes r_t = ln(v_t / v_{t-1}) over a value series.
// Returns a slice of length len(values)-1, or nil for insufficient data.
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1], values[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the last
// `window` log returns, using barsPerYear for annualization. Returns 0 when
// there is not enough data for a meaningful estimate.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum, sum2 := 0.0, 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// TradeDrawdownPct computes the peak-to-current decline of a cumulative
// PnL path, in percent. This is deliberately a trade-PnL drawdown, not an
// equity-curve drawdown: peak and current are running sums of trade PnL,
// and the result is 0 whenever the running peak never went positive.
func TradeDrawdownPct(pnls []float64) float64 {
	cum, peak := 0.0, 0.0
	for _, p := range pnls {
		cum += p
		if cum > peak {
			peak = cum
		}
	}
	if peak <= 0 {
		return 0
	}
	return (peak - cum) / peak * 100
}
