package router

import (
	"time"

	tg "github.com/m3rciful/pdfbot/core/telegram"
	"github.com/m3rciful/pdfbot/core/telegram/callbacks"
	"github.com/m3rciful/pdfbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions configures CallbackRoute.
type CallbackOptions struct {
	// Key names the route of a payload in handler logs; nil logs "callback".
	Key func(payload string) string
	// Handle receives every callback with its decoded payload. The handler
	// answers the query itself.
	Handle func(c tele.Context, payload string) error
}

// CallbackRoute returns the catch-all callback route.
func CallbackRoute(opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil || opts.Handle == nil {
			return nil
		}
		_, payload := callbacks.Parse(c.Callback())
		name := "callback"
		if opts.Key != nil {
			name += "." + normalizeHandlerName(opts.Key(payload))
		}
		return handleWithSummary(c, name, start, func() error {
			return opts.Handle(c, payload)
		}, slog.Int("payload_len", len(payload)))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
