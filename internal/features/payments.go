package features

import (
	"context"

	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/payment"
)

// PreCheckout validates a checkout before the platform charges the user.
// A non-empty message means the checkout is rejected with that text.
func (b *Bot) PreCheckout(ev flow.Event, payload, currency string, amount int) (ok bool, message string) {
	if b.Payments == nil {
		return false, b.t(ev, "support.unavailable")
	}
	if err := b.Payments.PreCheckout(payload, currency, amount); err != nil {
		return false, b.t(ev, "support.invalid")
	}
	return true, ""
}

// PaymentDone records a successful payment and thanks the user once per charge.
func (b *Bot) PaymentDone(ctx context.Context, ev flow.Event, r payment.Receipt) error {
	inserted, err := b.Payments.Confirm(ctx, r)
	if err != nil {
		return b.report(ctx, ev, err)
	}
	if !inserted {
		return nil
	}
	return b.report(ctx, ev, b.say(ctx, ev, "support.thanks", nil))
}
