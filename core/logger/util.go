package logger

import (
	"regexp"
	"strings"
	"time"
)

var botTokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Status maps err to "ok" or "error".
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Took returns the rounded time since start.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to the millisecond.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Summarize joins up to limit values and reports whether some were left out.
func Summarize(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}

// Redact hides bot tokens, which Bot API URLs carry in their path.
func Redact(s string) string {
	if !strings.Contains(s, "bot") {
		return s
	}
	return botTokenRe.ReplaceAllString(s, "bot<redacted>")
}

// ErrString is err.Error() with tokens redacted; nil gives "".
func ErrString(err error) string {
	if err == nil {
		return ""
	}
	return Redact(err.Error())
}
