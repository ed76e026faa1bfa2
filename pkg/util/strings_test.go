package util

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
    cases := []struct {
        in   string
        want string
        ok   bool
    }{
        {" aapl ", "AAPL", true},
        {"brk.b", "BRK.B", true},
        {"^gspc", "", false},
        {"es=f", "ES=F", true},
        {"", "", false},
        {"   ", "", false},
        {"AA PL", "", false},
        {"$$", "", false},
        {"ABCDEFGHIJKLMNOPQ", "", false},
    }
    for _, c := range cases {
        got, ok := NormalizeSymbol(c.in)
        assert.Equal(t, c.ok, ok, c.in)
        assert.Equal(t, c.want, got, c.in)
    }
}

func TestParseIntDefault(t *testing.T) {
    assert.Equal(t, 7, ParseIntDefault("", 7))
    assert.Equal(t, 7, ParseIntDefault("x", 7))
    assert.Equal(t, 30, ParseIntDefault("30", 7))
}
