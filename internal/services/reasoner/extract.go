package reasoner

import (
    "regexp"
    "strings"
)

var fenceRe = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*\\n?(.*?)\\n?```$")

// StripMarkdown removes a surrounding ``` or ```json code fence.
func StripMarkdown(s string) string {
    s = strings.TrimSpace(s)
    if m := fenceRe.FindStringSubmatch(s); len(m) > 1 {
        return strings.TrimSpace(m[1])
    }
    return s
}

// ExtractJSON returns the first balanced JSON object in s, ignoring braces
// inside strings. It returns "" when there is none.
func ExtractJSON(s string) string {
    s = StripMarkdown(s)
    start := strings.IndexByte(s, '{')
    if start < 0 {
        return ""
    }
    depth := 0
    inString, escaped := false, false
    for i := start; i < len(s); i++ {
        c := s[i]
        if inString {
            switch {
            case escaped:
                escaped = false
            case c == '\\':
                escaped = true
            case c == '"':
                inString = false
            }
            continue
        }
        switch c {
        case '"':
            inString = true
        case '{':
            depth++
        case '}':
            depth--
            if depth == 0 {
                return s[start : i+1]
            }
        }
    }
    return ""
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(texts ...string) int {
    n := 0
    for _, t := range texts {
        n += len(t)
    }
    return (n + 3) / 4
}

// EstimateCost prices a token count at costPer1K.
func EstimateCost(tokens int, costPer1K float64) float64 {
    return float64(tokens) / 1000 * costPer1K
}
