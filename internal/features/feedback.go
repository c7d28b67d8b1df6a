package features

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/session"
)

// StateFeedback waits for the feedback text.
const StateFeedback flow.State = "awaiting-feedback"

func (b *Bot) feedbackFlow() flow.Flow {
	return flow.Flow{
		Name: FlowFeedback,
		Entry: func(ctx context.Context, _ *session.Session, ev flow.Event) (flow.State, error) {
			return StateFeedback, b.say(ctx, ev, "feedback.ask", b.reply(ev, []string{"btn.cancel"}))
		},
		States: map[flow.State]flow.Handler{
			StateFeedback: b.onFeedback,
		},
	}
}

func (b *Bot) onFeedback(ctx context.Context, _ *session.Session, ev flow.Event) (flow.State, error) {
	if b.is(ev, "btn.cancel") || b.is(ev, "btn.back") {
		return b.cancelled(ctx, ev)
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" || ev.File != nil {
		return "", failure.UserInput("feedback.invalid")
	}
	if b.AdminID != 0 {
		msg := b.Bundle.T(b.Languages.Default(), "feedback.forward", ev.UserID, text)
		if err := b.Messenger.Post(ctx, b.AdminID, msg); err != nil {
			return "", err
		}
	} else {
		logger.Info(ctx, "app", "feedback.received",
			slog.Int64("user_id", ev.UserID),
			slog.String("text", logger.SanitizeLimit(text, 512)),
		)
	}
	return flow.End, b.say(ctx, ev, "feedback.thanks", &Keyboard{Remove: true})
}
