// Package payment sells the support options through platform invoices.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/metrics"
)

const payloadPrefix = "support"

var (
	// ErrDisabled is returned when no provider token is configured.
	ErrDisabled = errors.New("payment: disabled")
	// ErrUnknownOption is returned for an option id missing from the config.
	ErrUnknownOption = errors.New("payment: unknown option")
	// ErrInvalidPayload is returned for an invoice payload this bot did not issue.
	ErrInvalidPayload = errors.New("payment: invalid payload")
)

// Option is one support tier. Amount is in the currency's smallest unit.
type Option struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Amount int    `yaml:"amount"`
}

// Config describes the billing setup.
type Config struct {
	ProviderToken string   `yaml:"provider_token" envconfig:"PAYMENT_PROVIDER_TOKEN"`
	Currency      string   `yaml:"currency" envconfig:"PAYMENT_CURRENCY"`
	Options       []Option `yaml:"options"`
}

// DefaultOptions are used when the config lists none.
func DefaultOptions() []Option {
	return []Option{
		{ID: "thanks", Label: "Say Thanks 😁 ($1)", Amount: 100},
		{ID: "coffee", Label: "Coffee ☕ ($3)", Amount: 300},
		{ID: "beer", Label: "Beer 🍺 ($5)", Amount: 500},
		{ID: "meal", Label: "Meal 🍲 ($10)", Amount: 1000},
	}
}

// Normalize fills defaults and checks option ids.
func (c *Config) Normalize() error {
	c.ProviderToken = strings.TrimSpace(c.ProviderToken)
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if len(c.Options) == 0 {
		c.Options = DefaultOptions()
	}
	seen := make(map[string]struct{}, len(c.Options))
	for _, o := range c.Options {
		if o.ID == "" || strings.ContainsAny(o.ID, ":,") {
			return fmt.Errorf("payment option id %q must be non-empty without ':' or ','", o.ID)
		}
		if o.Amount <= 0 {
			return fmt.Errorf("payment option %s: amount must be positive", o.ID)
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("payment option %s: duplicate id", o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

// Invoice is what the transport needs to send a platform invoice.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Token       string
	Currency    string
	Label       string
	Amount      int
}

// Receipt is a successful payment reported by the platform.
type Receipt struct {
	UserID           int64
	ChargeID         string
	ProviderChargeID string
	Payload          string
	Currency         string
	Amount           int
}

// Service issues invoices and confirms payments.
type Service struct {
	cfg   Config
	repo  Repository
	nonce func() string
}

// NewService builds a Service. cfg must be normalized.
func NewService(cfg Config, repo Repository) *Service {
	return &Service{cfg: cfg, repo: repo, nonce: uuid.NewString}
}

// Enabled reports whether invoices can be sent.
func (s *Service) Enabled() bool { return s.cfg.ProviderToken != "" }

// Options lists the support tiers in config order.
func (s *Service) Options() []Option {
	return append([]Option(nil), s.cfg.Options...)
}

func (s *Service) option(id string) (Option, bool) {
	for _, o := range s.cfg.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Invoice builds the invoice for option id.
func (s *Service) Invoice(id, title, description string) (Invoice, error) {
	if !s.Enabled() {
		return Invoice{}, ErrDisabled
	}
	o, ok := s.option(id)
	if !ok {
		return Invoice{}, fmt.Errorf("%w: %q", ErrUnknownOption, id)
	}
	metrics.IncPayment("invoice")
	return Invoice{
		Title:       title,
		Description: description,
		Payload:     payloadPrefix + ":" + o.ID + ":" + s.nonce(),
		Token:       s.cfg.ProviderToken,
		Currency:    s.cfg.Currency,
		Label:       o.Label,
		Amount:      o.Amount,
	}, nil
}

// parsePayload returns the option behind an invoice payload.
func (s *Service) parsePayload(payload string) (Option, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] != payloadPrefix || parts[2] == "" {
		return Option{}, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	o, ok := s.option(parts[1])
	if !ok {
		return Option{}, fmt.Errorf("%w: %q", ErrUnknownOption, parts[1])
	}
	return o, nil
}

// PreCheckout approves a checkout when payload, currency and amount match an option.
func (s *Service) PreCheckout(payload, currency string, amount int) error {
	o, err := s.parsePayload(payload)
	if err == nil && (currency != s.cfg.Currency || amount != o.Amount) {
		err = fmt.Errorf("%w: %s %d does not match option %s", ErrInvalidPayload, currency, amount, o.ID)
	}
	if err != nil {
		metrics.IncPayment("rejected")
		return err
	}
	metrics.IncPayment("precheckout")
	return nil
}

// Confirm records a successful payment. It reports false when the charge was
// already recorded.
func (s *Service) Confirm(ctx context.Context, r Receipt) (bool, error) {
	o, err := s.parsePayload(r.Payload)
	if err != nil {
		return false, err
	}
	if r.ChargeID == "" {
		return false, fmt.Errorf("%w: empty charge id", ErrInvalidPayload)
	}
	inserted, err := s.repo.Insert(ctx, Record{
		ChargeID:         r.ChargeID,
		ProviderChargeID: r.ProviderChargeID,
		UserID:           r.UserID,
		OptionID:         o.ID,
		Currency:         r.Currency,
		Amount:           r.Amount,
		Payload:          r.Payload,
	})
	if err != nil {
		metrics.IncPayment("error")
		return false, err
	}
	status := "confirmed"
	if !inserted {
		status = "duplicate"
	}
	metrics.IncPayment(status)
	logger.Info(ctx, "payment", "payment."+status,
		slog.Int64("user_id", r.UserID),
		slog.String("option", o.ID),
		slog.String("currency", r.Currency),
		slog.Int("amount", r.Amount),
	)
	return inserted, nil
}
