package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/pdfbot/core/telegram/helpers"
	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/features"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/payment"

	tele "gopkg.in/telebot.v4"
)

// eventFrom converts an update into a flow event. Lang is left for the caller.
func eventFrom(c tele.Context) flow.Event {
	var ev flow.Event
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
	}
	ev.ChatID = ev.UserID
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}
	if m := c.Message(); m != nil {
		ev.Text = m.Text
		ev.File = fileRef(m)
	}
	return ev
}

// fileRef describes the upload carried by m, if any.
func fileRef(m *tele.Message) *flow.FileRef {
	switch {
	case m.Document != nil:
		d := m.Document
		return &flow.FileRef{ID: d.FileID, Name: d.FileName, MIME: d.MIME, Size: int64(d.FileSize)}
	case m.Photo != nil:
		p := m.Photo
		return &flow.FileRef{ID: p.FileID, Name: p.UniqueID + ".jpg", MIME: "image/jpeg", Size: int64(p.FileSize)}
	}
	return nil
}

// event builds the flow event of c with the user's resolved language.
func (a *App) event(ctx context.Context, c tele.Context) flow.Event {
	ev := eventFrom(c)
	platform := ""
	if u := c.Sender(); u != nil {
		platform = u.LanguageCode
	}
	ev.Lang = a.langs.Resolve(ctx, ev.UserID, platform)
	return ev
}

func (a *App) onMessage(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return a.bot.OnMessage(ctx, a.event(ctx, c))
}

// command adapts a feature command to a telebot handler. The text after the
// command name is passed as args.
func (a *App) command(cmd features.Command) commands.Command {
	return commands.Command{
		Description: cmd.Description,
		AdminOnly:   cmd.AdminOnly,
		Hidden:      cmd.Hidden,
		Handler: func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			args := ""
			if m := c.Message(); m != nil {
				args = m.Payload
			}
			return cmd.Handle(ctx, a.event(ctx, c), args)
		},
	}
}

// onCallback answers the query first: an expired query means the button is stale.
func (a *App) onCallback(c tele.Context, payload string) error {
	ctx := tghelpers.BuildContext(c)
	ev := a.event(ctx, c)
	if cb := c.Callback(); cb != nil && cb.Message != nil {
		ev.MessageID = cb.Message.ID
	}
	err := classify(a.disp.Do(ctx, "callback.answer", "answerCallbackQuery", func() error {
		return c.Respond()
	}))
	var fe *failure.Error
	if errors.As(err, &fe) && fe.Kind == failure.KindTransportStale {
		a.engine.Fail(ctx, ev, err)
		return nil
	}
	if err != nil {
		logger.Warn(ctx, "app", "callback.answer.fail", slog.String("err", err.Error()))
	}
	return a.bot.OnCallback(ctx, ev, payload)
}

func (a *App) onCheckout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	ok, reason := a.bot.PreCheckout(a.event(ctx, c), q.Payload, q.Currency, q.Total)
	if ok {
		return c.Accept()
	}
	logger.Warn(ctx, "app", "checkout.rejected",
		slog.String("payload", logger.SanitizeLimit(q.Payload, 128)),
		slog.String("currency", q.Currency),
		slog.Int("amount", q.Total),
	)
	return c.Accept(reason)
}

func (a *App) onPayment(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Payment == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	ev := a.event(ctx, c)
	p := m.Payment
	return a.bot.PaymentDone(ctx, ev, payment.Receipt{
		UserID:           ev.UserID,
		ChargeID:         p.TelegramChargeID,
		ProviderChargeID: p.ProviderChargeID,
		Payload:          p.Payload,
		Currency:         p.Currency,
		Amount:           p.Total,
	})
}

// onLimited tells a throttled user to slow down. Callbacks get a toast so the
// button stops spinning.
func (a *App) onLimited(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := a.bundle.T(a.event(ctx, c).Lang, "error.slow_down")
	if c.Callback() != nil {
		return tghelpers.Answer(c, text)
	}
	return tghelpers.Notice(c, text)
}
