package middleware

import (
	"context"
	"sync/atomic"

	"github.com/m3rciful/pdfbot/core/metrics"
	tghelpers "github.com/m3rciful/pdfbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Update kinds used for metrics and rate limit exclusions.
const (
	KindMessage  = "message"
	KindCallback = "callback"
	KindCheckout = "checkout"
	KindPayment  = "payment"
	KindInline   = "inline_query"
	KindOther    = "other"
)

// UpdateKind classifies the update behind c.
func UpdateKind(c tele.Context) string {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.PreCheckoutQuery != nil:
		return KindCheckout
	case upd.Message != nil && upd.Message.Payment != nil:
		return KindPayment
	case upd.Message != nil:
		return KindMessage
	case upd.Query != nil:
		return KindInline
	}
	return KindOther
}

type sendCounters struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

type countersKey struct{}

// MessageMetricsMiddleware counts the update and attaches send counters to its
// context. Senders report through CountSent; handler summaries read GetCounters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.IncUpdate(UpdateKind(c))
		ctx := tghelpers.BuildContext(c)
		tghelpers.StoreContext(c, context.WithValue(ctx, countersKey{}, &sendCounters{}))
		return next(c)
	}
}

// CountSent records one outgoing message for the update carried by ctx.
func CountSent(ctx context.Context, keyboard bool) {
	sc, ok := ctx.Value(countersKey{}).(*sendCounters)
	if !ok {
		return
	}
	sc.messages.Add(1)
	if keyboard {
		sc.keyboard.Store(true)
	}
}

// GetCounters reads message count and keyboard presence flags for c.
func GetCounters(c tele.Context) (int, bool) {
	ctx, ok := tghelpers.ContextFrom(c)
	if !ok {
		return 0, false
	}
	sc, ok := ctx.Value(countersKey{}).(*sendCounters)
	if !ok {
		return 0, false
	}
	return int(sc.messages.Load()), sc.keyboard.Load()
}
