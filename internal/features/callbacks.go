package features

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/metrics"
	"github.com/m3rciful/pdfbot/internal/callback"
	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/language"
	"github.com/m3rciful/pdfbot/internal/payment"
)

// OnCallback routes an inline button payload. Unknown payloads are ignored.
func (b *Bot) OnCallback(ctx context.Context, ev flow.Event, payload string) error {
	route, err := b.router.Dispatch(ctx, payload, callback.Handlers{
		LanguageMenu: func(ctx context.Context, _ string) error {
			return b.languageMenu(ctx, ev)
		},
		SetLanguage: func(ctx context.Context, name string) error {
			return b.setLanguage(ctx, ev, name)
		},
		PaymentMenu: func(ctx context.Context, _ string) error {
			return b.supportMenu(ctx, ev)
		},
		Invoice: func(ctx context.Context, id string) error {
			return b.sendInvoice(ctx, ev, id)
		},
	})
	metrics.IncCallback(route.Kind.String())
	return b.report(ctx, ev, err)
}

func (b *Bot) setLanguage(ctx context.Context, ev flow.Event, name string) error {
	code, err := b.Languages.Set(ctx, ev.UserID, name)
	if err != nil {
		return err
	}
	ev.Lang = code
	label, _ := language.NameFor(code)
	text := b.t(ev, "lang.set", label)
	if ev.MessageID != 0 {
		err := b.Messenger.EditText(ctx, ev.ChatID, ev.MessageID, text)
		var fe *failure.Error
		if err == nil || (errors.As(err, &fe) && fe.Kind == failure.KindSilent) {
			return nil
		}
		logger.Debug(ctx, "app", "lang.edit.fallback", slog.String("err", err.Error()))
	}
	return b.Messenger.SendText(ctx, ev.ChatID, text, nil)
}

func (b *Bot) sendInvoice(ctx context.Context, ev flow.Event, id string) error {
	inv, err := b.Payments.Invoice(id, b.t(ev, "support.invoice_title"), b.t(ev, "support.invoice_description"))
	switch {
	case errors.Is(err, payment.ErrUnknownOption):
		// The button outlived a config change.
		return failure.Stale(err)
	case errors.Is(err, payment.ErrDisabled):
		return b.say(ctx, ev, "support.unavailable", nil)
	case err != nil:
		return err
	}
	return b.Messenger.SendInvoice(ctx, ev.ChatID, inv)
}
