package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Dispatcher returns the installed dispatcher or nil.
func Dispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := Dispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// Notice sends plain text to the current chat without waiting for delivery.
// Use it for replies whose failure changes nothing, such as rate limit hints.
func Notice(c tele.Context, text string, opts ...any) error {
	return sendAsync(c, "send.notice", "sendMessage", func() error {
		return c.Send(text, opts...)
	})
}

// Answer responds to a callback query, optionally with a toast text.
func Answer(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	resp := &tele.CallbackResponse{}
	if text != "" {
		resp.Text = text
	}
	return sendAsync(c, "callback.answer", "answerCallbackQuery", func() error {
		return c.Respond(resp)
	})
}
