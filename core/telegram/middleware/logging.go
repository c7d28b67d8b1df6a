package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/pdfbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware runs both globally and inside the routers, so the same
// update can pass it more than once; seenUpdates keeps the receipt line single.
var seenUpdates = sync.OnceValue(func() otter.Cache[int, struct{}] {
	c, err := otter.MustBuilder[int, struct{}](4096).WithTTL(10 * time.Second).Build()
	if err != nil {
		panic(err)
	}
	return c
})

func firstSighting(updateID int) bool {
	seen := seenUpdates()
	if _, ok := seen.Get(updateID); ok {
		return false
	}
	seen.Set(updateID, struct{}{})
	return true
}

// LoggerMiddleware sets the request id, stores the update context and logs one
// receipt line per update. It extends a context stored by earlier middleware.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		base, ok := tghelpers.ContextFrom(c)
		if !ok {
			base = context.Background()
		}
		ctx := logger.WithUpdateMeta(logger.WithRID(base, rid), upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug("update.received") && firstSighting(upd.ID) {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

// receiptAttrs describes the update without its private content beyond a
// truncated payload.
func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", UpdateKind(c)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil && user.LanguageCode != "" {
		attrs = append(attrs, slog.String("lang", user.LanguageCode))
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		unique, payload := callbacks.Parse(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(unique, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
		if d := upd.Message.Document; d != nil {
			attrs = append(attrs, slog.String("mime", d.MIME), slog.Int64("size", int64(d.FileSize)))
		} else if upd.Message.Photo != nil {
			attrs = append(attrs, slog.String("mime", "image/jpeg"))
		}
	}
	return attrs
}
