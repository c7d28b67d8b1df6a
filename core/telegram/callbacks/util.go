// Package callbacks decodes inline button payloads.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// uniqueMarker prefixes data of buttons built with a unique endpoint.
const uniqueMarker = "\f"

// Parse returns the unique endpoint and the payload of cb. Buttons sent with
// raw data have no unique part; their whole data is the payload.
func Parse(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	if !strings.HasPrefix(cb.Data, uniqueMarker) {
		return "", cb.Data
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, uniqueMarker), "|")
	return strings.TrimSpace(unique), payload
}

// Payload returns the callback payload of c, or "" outside callback updates.
func Payload(c tele.Context) string {
	_, payload := Parse(c.Callback())
	return payload
}
