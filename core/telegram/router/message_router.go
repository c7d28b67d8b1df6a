package router

import (
	"time"

	tg "github.com/m3rciful/pdfbot/core/telegram"
	"github.com/m3rciful/pdfbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions routes plain messages. Handle receives text, documents and
// photos; nil skips them with a log line.
type MessageOptions struct {
	Handle tele.HandlerFunc
}

// MessageRoutes builds the text, document and photo routes.
func MessageRoutes(opts MessageOptions) []tg.Route {
	wrap := func(name string) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(func(c tele.Context) error {
			start := time.Now()
			if opts.Handle == nil {
				logHandlerSummary(c, name, start, "ignored", nil)
				return nil
			}
			return handleWithSummary(c, name, start, func() error { return opts.Handle(c) })
		}))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap("text")},
		{Endpoint: tele.OnDocument, Handler: wrap("document")},
		{Endpoint: tele.OnPhoto, Handler: wrap("photo")},
	}
}

// UpdateRoute wraps h for an arbitrary endpoint such as tele.OnCheckout.
func UpdateRoute(endpoint, name string, h tele.HandlerFunc) tg.Route {
	return tg.Route{
		Endpoint: endpoint,
		Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(func(c tele.Context) error {
			return handleWithSummary(c, name, time.Now(), func() error { return h(c) })
		})),
	}
}
