package util

import (
    "strconv"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
    unix := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()

    got, ok := ParseTime("2024-10-10T10:10:10Z")
    require.True(t, ok)
    assert.Equal(t, "2024-10-10T10:10:10Z", got.UTC().Format(time.RFC3339))

    got, ok = ParseTime(strconv.FormatInt(unix, 10))
    require.True(t, ok)
    assert.Equal(t, unix, got.Unix())

    for _, bad := range []string{"", "yesterday", "0", "-5"} {
        _, ok := ParseTime(bad)
        assert.False(t, ok, bad)
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    assert.True(t, ParseTimeDefault("", def).Equal(def))
    assert.True(t, ParseTimeDefault("not-a-time", def).Equal(def))
    assert.False(t, ParseTimeDefault("2025-01-02T00:00:00Z", def).Equal(def))
}

func TestAlignFromTo(t *testing.T) {
    from := time.Date(2025, 3, 4, 10, 7, 30, 0, time.UTC)

    cases := []struct {
        tf       string
        to       time.Time
        wantFrom time.Time
        wantTo   time.Time
    }{
        {"1m", time.Date(2025, 3, 4, 12, 0, 20, 0, time.UTC),
            time.Date(2025, 3, 4, 10, 7, 0, 0, time.UTC), time.Date(2025, 3, 4, 12, 1, 0, 0, time.UTC)},
        {"5m", time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC),
            time.Date(2025, 3, 4, 10, 5, 0, 0, time.UTC), time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)},
        {"1h", time.Date(2025, 3, 4, 12, 30, 0, 0, time.UTC),
            time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)},
        {"1d", time.Date(2025, 3, 4, 12, 1, 0, 0, time.UTC),
            time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)},
        {"weird", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
            time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)},
    }
    for _, tc := range cases {
        t.Run(tc.tf, func(t *testing.T) {
            f, to := AlignFromTo(from, tc.to, tc.tf)
            assert.True(t, f.Equal(tc.wantFrom), "from %v", f)
            assert.True(t, to.Equal(tc.wantTo), "to %v", to)
        })
    }
}
