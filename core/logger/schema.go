package logger

import "strings"

// enum lists the accepted values of a low-cardinality field.
type enum map[string]struct{}

func newEnum(values ...string) enum {
	e := make(enum, len(values))
	for _, v := range values {
		e[v] = struct{}{}
	}
	return e
}

// normalize lowercases v and reports whether it is one of the accepted values.
func (e enum) normalize(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	_, ok := e[v]
	return v, ok
}

var (
	statusValues  = newEnum("ok", "error", "fail", "skip", "retry", "rate_limited", "cancelled", "stay")
	cacheValues   = newEnum("hit", "miss", "refresh")
	outcomeValues = newEnum("ok", "fail", "stay", "end", "ignored", "cancelled", "rate_limited")
)

// normalizeLevel maps slog level names, and "warning" or "fatal", to upper case.
func normalizeLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "":
		return "INFO"
	case "WARNING":
		return "WARN"
	default:
		return l
	}
}

// normalizeStatus keeps unknown statuses, lowercased; only cache and outcome
// are strict.
func normalizeStatus(status string) (string, bool) { return statusValues.normalize(status) }

func normalizeCache(cache string) (string, bool) { return cacheValues.normalize(cache) }

func normalizeOutcome(outcome string) (string, bool) { return outcomeValues.normalize(outcome) }

// defaultKeyOrder puts identity first, then the flow and pdf fields, then
// transport and error details. Keys not listed follow in sorted order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"flow", "state", "next_state", "kind", "operation", "op", "cb_key", "outcome",
	"duration_ms",
	"messages", "kb", "count", "files", "pages", "bytes", "mime", "size", "cache",
	"payload", "lang", "option", "currency", "amount",
	"username", "mode", "listen", "public_url", "http_code", "db", "host", "port",
	"err", "err_code", "source", "cause", "retryable", "attempts", "backoff_ms",
	"rate_limited", "collapsed", "repeats", "pending_count",
}
