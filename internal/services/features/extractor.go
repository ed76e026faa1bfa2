package features

import (
    "math"

    "gonum.org/v1/gonum/stat"

    "FinFusion/internal/domain/models"
)

// Minimum bars for the estimators below. They differ on purpose: each is the
// smallest sample at which that statistic stops being noise.
const (
    MinBarsTrendStability       = 20
    MinBarsVolatilityClustering = 30
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(bars)-1, or nil if insufficient data.
func ComputeLogReturns(bars []models.Bar) []float64 {
    if len(bars) < 2 {
        return nil
    }
    out := make([]float64, 0, len(bars)-1)
    for i := 1; i < len(bars); i++ {
        prev := bars[i-1].Close
        cur := bars[i].Close
        if prev <= 0 || cur <= 0 {
            out = append(out, 0)
            continue
        }
        out = append(out, math.Log(cur/prev))
    }
    return out
}

// RealizedVolatility computes annualized realized volatility over the last
// `window` returns using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
    if window <= 1 || len(logReturns) < window {
        return 0
    }
    sigma := stat.StdDev(logReturns[len(logReturns)-window:], nil)
    if math.IsNaN(sigma) {
        return 0
    }
    // annualize
    return sigma * math.Sqrt(barsPerYear)
}

// HistoricalVolatility is the annualized stdev of all returns.
func HistoricalVolatility(logReturns []float64, barsPerYear float64) float64 {
    return RealizedVolatility(logReturns, len(logReturns), barsPerYear)
}

// TrendStability is the R² of a least-squares line through the closes.
// Returns 0 below MinBarsTrendStability bars.
func TrendStability(closes []float64) float64 {
    if len(closes) < MinBarsTrendStability {
        return 0
    }
    xs := make([]float64, len(closes))
    for i := range xs {
        xs[i] = float64(i)
    }
    alpha, beta := stat.LinearRegression(xs, closes, nil, false)
    r2 := stat.RSquared(xs, closes, nil, alpha, beta)
    if math.IsNaN(r2) || math.IsInf(r2, 0) {
        return 0
    }
    return clamp(r2, 0, 1)
}

// VolatilityClustering is the lag-1 autocorrelation of squared returns, in [-1,1].
// Returns 0 below MinBarsVolatilityClustering bars.
func VolatilityClustering(logReturns []float64) float64 {
    if len(logReturns)+1 < MinBarsVolatilityClustering {
        return 0
    }
    sq := make([]float64, len(logReturns))
    for i, r := range logReturns {
        sq[i] = r * r
    }
    c := stat.Correlation(sq[:len(sq)-1], sq[1:], nil)
    if math.IsNaN(c) {
        return 0
    }
    return clamp(c, -1, 1)
}

// CoefficientOfVariation returns stdev/mean, or 0 for empty or zero-mean input.
func CoefficientOfVariation(xs []float64) float64 {
    if len(xs) < 2 {
        return 0
    }
    mean, std := stat.MeanStdDev(xs, nil)
    if mean == 0 || math.IsNaN(std) {
        return 0
    }
    return std / math.Abs(mean)
}

func clamp(v, lo, hi float64) float64 {
    if v < lo {
        return lo
    }
    if v > hi {
        return hi
    }
    return v
}
