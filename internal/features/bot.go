// Package features defines the bot's conversations, commands and button handlers.
// It talks to the chat platform only through Messenger, so every flow runs
// unchanged in tests.
package features

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/internal/callback"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/i18n"
	"github.com/m3rciful/pdfbot/internal/language"
	"github.com/m3rciful/pdfbot/internal/payment"
	"github.com/m3rciful/pdfbot/internal/pdf"
)

// Button is an inline button.
type Button struct {
	Text string
	Data string
}

// Keyboard is the markup attached to an outgoing message. Reply rows replace
// the user's keyboard; Remove hides it.
type Keyboard struct {
	Reply  [][]string
	Inline [][]Button
	Remove bool
}

// Messenger sends replies to the chat platform.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) error
	// EditText replaces the text of a sent message and drops its inline keyboard.
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	// Post queues a plain message and does not wait for delivery.
	Post(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, path, name, caption string) error
	SendInvoice(ctx context.Context, chatID int64, inv payment.Invoice) error
}

// Processor runs the document operations.
type Processor interface {
	Crop(ctx context.Context, f pdf.File, opt pdf.CropOptions) (*pdf.Result, error)
	Watermark(ctx context.Context, f pdf.File, text string) (*pdf.Result, error)
	Merge(ctx context.Context, files []pdf.File) (*pdf.Result, error)
	ImagesToPDF(ctx context.Context, files []pdf.File) (*pdf.Result, error)
	TextToPDF(ctx context.Context, text string) (*pdf.Result, error)
}

// Deps collects the collaborators of Bot.
type Deps struct {
	Engine    *flow.Engine
	Messenger Messenger
	PDF       Processor
	Bundle    *i18n.Bundle
	Languages *language.Service
	Payments  *payment.Service
	AdminID   int64
	MaxFileMB int
}

// Bot implements every user facing feature.
type Bot struct {
	Deps
	router *callback.Router
}

// New builds the Bot and registers its flows on d.Engine.
func New(d Deps) (*Bot, error) {
	if d.MaxFileMB <= 0 {
		d.MaxFileMB = 20
	}
	b := &Bot{Deps: d, router: callback.New(language.IsDisplayName)}
	for _, f := range b.Flows() {
		if err := d.Engine.Register(f); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Router exposes the callback router used for inline buttons.
func (b *Bot) Router() *callback.Router { return b.router }

// Flows returns every conversation the bot runs.
func (b *Bot) Flows() []flow.Flow {
	return []flow.Flow{
		b.pdfFlow(),
		b.mergeFlow(),
		b.imagesFlow(),
		b.textFlow(),
		b.feedbackFlow(),
	}
}

// Notify sends the translated message for key. Error messages also close the
// reply keyboard of the finished conversation.
func (b *Bot) Notify(ctx context.Context, ev flow.Event, key string) error {
	var kb *Keyboard
	if strings.HasPrefix(key, "error.") {
		kb = &Keyboard{Remove: true}
	}
	return b.Messenger.SendText(ctx, ev.ChatID, b.t(ev, key), kb)
}

// OnMessage feeds a text or file message to the conversation engine and
// answers messages no conversation accepted.
func (b *Bot) OnMessage(ctx context.Context, ev flow.Event) error {
	res, err := b.Engine.Handle(ctx, ev)
	if err != nil {
		return err
	}
	if res.Handled {
		return nil
	}
	key := "fallback.text"
	if ev.File != nil {
		key = "pdf.not_pdf"
	}
	return b.report(ctx, ev, b.say(ctx, ev, key, nil))
}

// report hands a failure outside the engine to the recovery policy.
func (b *Bot) report(ctx context.Context, ev flow.Event, err error) error {
	if err == nil {
		return nil
	}
	b.Engine.Fail(ctx, ev, err)
	return nil
}

func (b *Bot) t(ev flow.Event, key string, args ...any) string {
	return b.Bundle.T(ev.Lang, key, args...)
}

func (b *Bot) is(ev flow.Event, key string) bool {
	return b.Bundle.Is(ev.Lang, ev.Text, key)
}

func (b *Bot) say(ctx context.Context, ev flow.Event, key string, kb *Keyboard, args ...any) error {
	return b.Messenger.SendText(ctx, ev.ChatID, b.t(ev, key, args...), kb)
}

// reply builds a reply keyboard from rows of button keys.
func (b *Bot) reply(ev flow.Event, rows ...[]string) *Keyboard {
	kb := &Keyboard{Reply: make([][]string, 0, len(rows))}
	for _, row := range rows {
		labels := make([]string, 0, len(row))
		for _, key := range row {
			labels = append(labels, b.t(ev, key))
		}
		kb.Reply = append(kb.Reply, labels)
	}
	return kb
}

// deliver sends a produced file and removes it afterwards.
func (b *Bot) deliver(ctx context.Context, ev flow.Event, res *pdf.Result) error {
	defer res.Cleanup()
	logger.Info(ctx, "pdf", "pdf.delivered",
		slog.Int64("chat_id", ev.ChatID),
		slog.Int("pages", res.Pages),
	)
	return b.Messenger.SendDocument(ctx, ev.ChatID, res.Path, res.Name, b.t(ev, "result.caption"))
}

// tooLarge tells the user when ev carries a file above the download limit.
func (b *Bot) tooLarge(ctx context.Context, ev flow.Event) (bool, error) {
	if ev.File == nil || ev.File.Size <= int64(b.MaxFileMB)<<20 {
		return false, nil
	}
	return true, b.say(ctx, ev, "file.too_large", nil, b.MaxFileMB)
}

func toPDFFile(ref flow.FileRef) pdf.File {
	return pdf.File{ID: ref.ID, Name: ref.Name}
}
