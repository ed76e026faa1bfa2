package features

import (
    "math"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"

    "FinFusion/internal/domain/models"
)

func barsFromCloses(closes ...float64) []models.Bar {
    out := make([]models.Bar, len(closes))
    t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    for i, c := range closes {
        out[i] = models.Bar{Timestamp: t0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
    }
    return out
}

func TestComputeLogReturns(t *testing.T) {
    assert.Nil(t, ComputeLogReturns(barsFromCloses(100)))

    r := ComputeLogReturns(barsFromCloses(100, 110, 0, 121))
    assert.Len(t, r, 3)
    assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
    assert.Equal(t, 0.0, r[1])
    assert.Equal(t, 0.0, r[2])
}

func TestRealizedVolatility(t *testing.T) {
    assert.Equal(t, 0.0, RealizedVolatility([]float64{0.01}, 5, 252))

    flat := make([]float64, 30)
    assert.Equal(t, 0.0, RealizedVolatility(flat, 20, 252))

    alt := make([]float64, 20)
    for i := range alt {
        if i%2 == 0 {
            alt[i] = 0.01
        } else {
            alt[i] = -0.01
        }
    }
    v := RealizedVolatility(alt, 20, 252)
    assert.Greater(t, v, 0.15)
    assert.Less(t, v, 0.17)
}

func TestTrendStability(t *testing.T) {
    line := make([]float64, 40)
    for i := range line {
        line[i] = 100 + float64(i)
    }
    assert.InDelta(t, 1.0, TrendStability(line), 1e-9)
    assert.Equal(t, 0.0, TrendStability(line[:MinBarsTrendStability-1]))
}

func TestVolatilityClustering_ShortInput(t *testing.T) {
    assert.Equal(t, 0.0, VolatilityClustering(make([]float64, 10)))
}
