// Package callback decodes inline button payloads into routes.
package callback

import (
	"context"
	"strings"
)

// Payload constants shared by keyboard builders and the router.
const (
	SetLang = "set_lang"
	Payment = "payment"
	// PaymentSep separates the payment prefix from the option id.
	PaymentSep = ","
)

// Kind is the handler family a payload belongs to.
type Kind int

const (
	KindNone Kind = iota
	// KindLanguageMenu opens the language picker.
	KindLanguageMenu
	// KindSetLanguage selects the language named by Route.Arg.
	KindSetLanguage
	// KindPaymentMenu opens the support options.
	KindPaymentMenu
	// KindInvoice sends the invoice for the option in Route.Arg.
	KindInvoice
)

func (k Kind) String() string {
	switch k {
	case KindLanguageMenu:
		return "language_menu"
	case KindSetLanguage:
		return "set_language"
	case KindPaymentMenu:
		return "payment_menu"
	case KindInvoice:
		return "invoice"
	default:
		return "none"
	}
}

// Route is the decoded payload.
type Route struct {
	Kind Kind
	Arg  string
}

// Router matches payloads against a fixed priority list. The first rule that
// matches wins, so a language literally named "payment" still selects a language.
type Router struct {
	isLanguage func(string) bool
}

// New builds a Router. isLanguage reports whether a payload is a language
// display name; nil disables language selection.
func New(isLanguage func(string) bool) *Router {
	if isLanguage == nil {
		isLanguage = func(string) bool { return false }
	}
	return &Router{isLanguage: isLanguage}
}

// Match decodes payload. Unknown payloads return KindNone.
func (r *Router) Match(payload string) Route {
	switch {
	case payload == SetLang:
		return Route{Kind: KindLanguageMenu}
	case r.isLanguage(payload):
		return Route{Kind: KindSetLanguage, Arg: payload}
	case payload == Payment:
		return Route{Kind: KindPaymentMenu}
	case strings.HasPrefix(payload, Payment+PaymentSep):
		return Route{Kind: KindInvoice, Arg: strings.TrimPrefix(payload, Payment+PaymentSep)}
	}
	return Route{Kind: KindNone, Arg: payload}
}

// Key returns the registry key for payload.
func (r *Router) Key(payload string) string {
	return r.Match(payload).Kind.String()
}

// Handler receives the argument of a matched route.
type Handler func(ctx context.Context, arg string) error

// Handlers binds one Handler per route kind. Nil entries ignore the route.
type Handlers struct {
	LanguageMenu Handler
	SetLanguage  Handler
	PaymentMenu  Handler
	Invoice      Handler
}

func (h Handlers) pick(k Kind) Handler {
	switch k {
	case KindLanguageMenu:
		return h.LanguageMenu
	case KindSetLanguage:
		return h.SetLanguage
	case KindPaymentMenu:
		return h.PaymentMenu
	case KindInvoice:
		return h.Invoice
	}
	return nil
}

// Dispatch matches payload and runs at most one handler. Unmatched payloads
// are ignored without error.
func (r *Router) Dispatch(ctx context.Context, payload string, h Handlers) (Route, error) {
	route := r.Match(payload)
	fn := h.pick(route.Kind)
	if fn == nil {
		return route, nil
	}
	return route, fn(ctx, route.Arg)
}

// InvoicePayload builds the payload of the button paying for option id.
func InvoicePayload(id string) string {
	return Payment + PaymentSep + id
}
