package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/observability"
	tghelpers "github.com/m3rciful/pdfbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware catches panics in handlers, logs the stack and escalates
// them so one bad update cannot stop the bot.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := tghelpers.BuildContext(c)
			logger.Error(ctx, "tg", "panic",
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			var userID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			observability.Capture(ctx, observability.Report{
				Err:    fmt.Errorf("telegram handler panic: %v", r),
				Level:  slog.LevelError,
				UserID: userID,
				Tags:   map[string]string{"handler": logger.HandlerFrom(ctx), "kind": UpdateKind(c)},
			})
			err = nil
		}()
		return next(c)
	}
}
