package util

import (
    "regexp"
    "strconv"
    "strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
    if s == "" {
        return def
    }
    v, err := strconv.Atoi(s)
    if err != nil {
        return def
    }
    return v
}

var symbolRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,15}$`)

// NormalizeSymbol trims and upper-cases a ticker. ok is false for empty or
// malformed input (e.g. "AA PL", "$$").
func NormalizeSymbol(s string) (string, bool) {
    s = strings.ToUpper(strings.TrimSpace(s))
    if !symbolRe.MatchString(s) {
        return "", false
    }
    return s, true
}
