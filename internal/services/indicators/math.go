package indicators

import (
	"math"
	"sort"

	"FinFusion/internal/domain/models"
)

// Every helper here returns a neutral sentinel on short or degenerate input.

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	v = finite(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

// SMA of the last `period` values, or of all values when fewer are available.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if period > len(values) {
		period = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA seeded with the SMA of the first `period` values.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if period > len(values) {
		return SMA(values, len(values))
	}
	k := 2.0 / float64(period+1)
	ema := SMA(values[:period], period)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// RSI with Wilder smoothing. 50 on insufficient data, 100 when there are no losses.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		ch := closes[i] - closes[i-1]
		if ch > 0 {
			avgGain += ch
		} else {
			avgLoss -= ch
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		ch := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if ch > 0 {
			gain = ch
		} else {
			loss = -ch
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ComputeMACD returns the MACD line with a simplified signal line
// (a fixed fraction of the MACD line) instead of an EMA of MACD history.
func ComputeMACD(closes []float64, fast, slow int) models.MACD {
	if len(closes) < slow {
		return models.MACD{}
	}
	line := EMA(closes, fast) - EMA(closes, slow)
	signal := line * 0.8
	return models.MACD{Line: line, Signal: signal, Histogram: line - signal}
}

func highestLowest(bars []models.Bar) (float64, float64) {
	hh, ll := math.Inf(-1), math.Inf(1)
	for _, b := range bars {
		hh = math.Max(hh, b.High)
		ll = math.Min(ll, b.Low)
	}
	return hh, ll
}

func stochK(bars []models.Bar) float64 {
	hh, ll := highestLowest(bars)
	if hh <= ll {
		return 50
	}
	return (bars[len(bars)-1].Close - ll) / (hh - ll) * 100
}

// Stochastic returns %K over kPeriod and %D as the SMA of the last dPeriod %K values.
func Stochastic(bars []models.Bar, kPeriod, dPeriod int) (float64, float64) {
	if kPeriod <= 0 || len(bars) < kPeriod {
		return 50, 50
	}
	if dPeriod < 1 {
		dPeriod = 1
	}
	ks := make([]float64, 0, dPeriod)
	for i := 0; i < dPeriod && len(bars)-i >= kPeriod; i++ {
		end := len(bars) - i
		ks = append(ks, stochK(bars[end-kPeriod:end]))
	}
	return ks[0], SMA(ks, len(ks))
}

// WilliamsR in [-100,0]; -50 when the range is flat.
func WilliamsR(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return -50
	}
	window := bars[len(bars)-period:]
	hh, ll := highestLowest(window)
	if hh <= ll {
		return -50
	}
	return (hh - window[len(window)-1].Close) / (hh - ll) * -100
}

// Momentum is the absolute price change over period; ROC is the same in percent.
func Momentum(closes []float64, period int) (float64, float64) {
	if period <= 0 || len(closes) <= period {
		return 0, 0
	}
	cur := closes[len(closes)-1]
	prev := closes[len(closes)-1-period]
	if prev == 0 {
		return cur - prev, 0
	}
	return cur - prev, (cur/prev - 1) * 100
}

func typical(b models.Bar) float64 {
	return (b.High + b.Low + b.Close) / 3
}

// CCI over period using mean absolute deviation of the typical price.
func CCI(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	tp := make([]float64, period)
	for i, b := range bars[len(bars)-period:] {
		tp[i] = typical(b)
	}
	mean := SMA(tp, period)
	dev := 0.0
	for _, v := range tp {
		dev += math.Abs(v - mean)
	}
	dev /= float64(period)
	if dev == 0 {
		return 0
	}
	return (tp[len(tp)-1] - mean) / (0.015 * dev)
}

func trueRange(cur, prev models.Bar) float64 {
	return math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}

// ATR with Wilder smoothing.
func ATR(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += trueRange(bars[i], bars[i-1])
	}
	atr /= float64(period)
	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(bars[i], bars[i-1])) / float64(period)
	}
	return atr
}

// ADX returns ADX, +DI and -DI using Wilder smoothing. Needs 2*period+1 bars.
func ADX(bars []models.Bar, period int) (adx, plusDI, minusDI float64) {
	if period <= 0 || len(bars) < 2*period+1 {
		return 0, 0, 0
	}

	n := len(bars) - 1
	tr := make([]float64, n)
	pdm := make([]float64, n)
	mdm := make([]float64, n)
	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			pdm[i-1] = up
		}
		if down > up && down > 0 {
			mdm[i-1] = down
		}
		tr[i-1] = trueRange(bars[i], bars[i-1])
	}

	var sTR, sP, sM float64
	for i := 0; i < period; i++ {
		sTR += tr[i]
		sP += pdm[i]
		sM += mdm[i]
	}

	p := float64(period)
	dx := func() float64 {
		if sTR == 0 {
			plusDI, minusDI = 0, 0
			return 0
		}
		plusDI = 100 * sP / sTR
		minusDI = 100 * sM / sTR
		if plusDI+minusDI == 0 {
			return 0
		}
		return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}

	dxs := []float64{dx()}
	for i := period; i < n; i++ {
		sTR = sTR - sTR/p + tr[i]
		sP = sP - sP/p + pdm[i]
		sM = sM - sM/p + mdm[i]
		dxs = append(dxs, dx())
	}

	adx = SMA(dxs[:period], period)
	for _, v := range dxs[period:] {
		adx = (adx*(p-1) + v) / p
	}
	return finite(adx), finite(plusDI), finite(minusDI)
}

type BollingerBands struct {
	Upper, Middle, Lower, Bandwidth, PercentB float64
}

// Bollinger bands over period with k population standard deviations.
func Bollinger(closes []float64, period int, k float64) BollingerBands {
	if period <= 0 || len(closes) < period {
		c := last(closes)
		return BollingerBands{Upper: c, Middle: c, Lower: c, PercentB: 0.5}
	}
	window := closes[len(closes)-period:]
	mid := SMA(window, period)
	variance := 0.0
	for _, v := range window {
		variance += (v - mid) * (v - mid)
	}
	sd := math.Sqrt(variance / float64(period))

	b := BollingerBands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd, PercentB: 0.5}
	if mid != 0 {
		b.Bandwidth = (b.Upper - b.Lower) / mid
	}
	if b.Upper > b.Lower {
		b.PercentB = (last(closes) - b.Lower) / (b.Upper - b.Lower)
	}
	return b
}

// OBV is cumulative volume signed by close direction. The second value is the
// OBV change over the last `lookback` bars normalized by the volume traded
// over them, in [-1,1].
func OBV(bars []models.Bar, lookback int) (float64, float64) {
	if len(bars) < 2 {
		return 0, 0
	}
	obv := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv[i] = obv[i-1] + bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv[i] = obv[i-1] - bars[i].Volume
		default:
			obv[i] = obv[i-1]
		}
	}
	if lookback >= len(bars) {
		lookback = len(bars) - 1
	}
	traded := 0.0
	for _, b := range bars[len(bars)-lookback:] {
		traded += b.Volume
	}
	trend := 0.0
	if traded > 0 {
		trend = (obv[len(obv)-1] - obv[len(obv)-1-lookback]) / traded
	}
	return obv[len(obv)-1], clamp(trend, -1, 1)
}

// VWAP over the bars using the typical price.
func VWAP(bars []models.Bar) float64 {
	pv, vol := 0.0, 0.0
	for _, b := range bars {
		pv += typical(b) * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		if len(bars) == 0 {
			return 0
		}
		return bars[len(bars)-1].Close
	}
	return pv / vol
}

type Profile struct {
	POC, ValueAreaHigh, ValueAreaLow float64
}

// VolumeProfile buckets volume by typical price and returns the point of
// control plus the bounds of the bucket range holding valueArea of the volume.
func VolumeProfile(bars []models.Bar, buckets int, valueArea float64) Profile {
	if len(bars) == 0 || buckets <= 0 {
		return Profile{}
	}
	hh, ll := highestLowest(bars)
	if hh <= ll {
		c := bars[len(bars)-1].Close
		return Profile{POC: c, ValueAreaHigh: c, ValueAreaLow: c}
	}
	step := (hh - ll) / float64(buckets)
	hist := make([]float64, buckets)
	total := 0.0
	for _, b := range bars {
		idx := int((typical(b) - ll) / step)
		if idx >= buckets {
			idx = buckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		hist[idx] += b.Volume
		total += b.Volume
	}

	poc := 0
	for i, v := range hist {
		if v > hist[poc] {
			poc = i
		}
	}
	center := func(i int) float64 { return ll + (float64(i)+0.5)*step }

	lo, hi := poc, poc
	acc := hist[poc]
	for total > 0 && acc/total < valueArea && (lo > 0 || hi < buckets-1) {
		below, above := -1.0, -1.0
		if lo > 0 {
			below = hist[lo-1]
		}
		if hi < buckets-1 {
			above = hist[hi+1]
		}
		if above >= below {
			hi++
			acc += hist[hi]
		} else {
			lo--
			acc += hist[lo]
		}
	}

	return Profile{
		POC:           center(poc),
		ValueAreaHigh: ll + float64(hi+1)*step,
		ValueAreaLow:  ll + float64(lo)*step,
	}
}

// SwingLevels finds local extrema (strict over `span` bars either side) and
// returns up to limit supports below and resistances above price, nearest first.
func SwingLevels(bars []models.Bar, span, limit int, price float64) (support, resistance []float64) {
	support, resistance = []float64{}, []float64{}
	for i := span; i < len(bars)-span; i++ {
		isHigh, isLow := true, true
		for j := i - span; j <= i+span; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
		}
		if isHigh && bars[i].High > price {
			resistance = append(resistance, bars[i].High)
		}
		if isLow && bars[i].Low < price {
			support = append(support, bars[i].Low)
		}
	}
	sort.Slice(support, func(a, b int) bool { return support[a] > support[b] })
	sort.Slice(resistance, func(a, b int) bool { return resistance[a] < resistance[b] })
	return dedupe(support, limit), dedupe(resistance, limit)
}

func dedupe(levels []float64, limit int) []float64 {
	out := make([]float64, 0, limit)
	for _, l := range levels {
		if len(out) == limit {
			break
		}
		if len(out) > 0 && math.Abs(out[len(out)-1]-l) < 1e-9 {
			continue
		}
		out = append(out, l)
	}
	return out
}
