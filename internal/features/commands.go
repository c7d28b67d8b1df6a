package features

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/m3rciful/pdfbot/internal/callback"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/language"
)

// Command describes one slash command for the registry and the menu.
type Command struct {
	Name        string
	Description string
	AdminOnly   bool
	Hidden      bool
	Handle      func(ctx context.Context, ev flow.Event, args string) error
}

// Commands lists every slash command.
func (b *Bot) Commands() []Command {
	return []Command{
		{Name: "start", Description: "Start the bot", Handle: b.Start},
		{Name: "help", Description: "Show what the bot can do", Handle: b.Help},
		{Name: "merge", Description: "Merge PDF files", Handle: b.startFlow(FlowMerge)},
		{Name: "images", Description: "Convert images into a PDF file", Handle: b.startFlow(FlowImages)},
		{Name: "text", Description: "Convert text into a PDF file", Handle: b.startFlow(FlowText)},
		{Name: "feedback", Description: "Send feedback", Handle: b.startFlow(FlowFeedback)},
		{Name: "setlang", Description: "Change the language", Handle: b.SetLang},
		{Name: "support", Description: "Support PDF Bot", Handle: b.Support},
		{Name: "cancel", Description: "Cancel the current action", Handle: b.Cancel},
		{Name: "send", Description: "Message a user", AdminOnly: true, Hidden: true, Handle: b.SendToUser},
	}
}

// Start greets the user. The "support" deep link opens the support options.
func (b *Bot) Start(ctx context.Context, ev flow.Event, args string) error {
	if strings.TrimSpace(args) == "support" {
		return b.Support(ctx, ev, "")
	}
	kb := &Keyboard{Inline: [][]Button{
		{{Text: b.t(ev, "btn.set_lang"), Data: callback.SetLang}},
		{{Text: b.t(ev, "btn.support"), Data: callback.Payment}},
	}}
	return b.report(ctx, ev, b.say(ctx, ev, "start.welcome", kb))
}

// Help lists the commands and, mid-conversation, how to leave it.
func (b *Bot) Help(ctx context.Context, ev flow.Event, _ string) error {
	text := b.t(ev, "help.text")
	_, active, err := b.Engine.Active(ctx, ev.UserID)
	if err != nil {
		return b.report(ctx, ev, err)
	}
	if active {
		text += "\n\n" + b.t(ev, "help.active")
	}
	return b.report(ctx, ev, b.Messenger.SendText(ctx, ev.ChatID, text, nil))
}

func (b *Bot) startFlow(name string) func(context.Context, flow.Event, string) error {
	return func(ctx context.Context, ev flow.Event, _ string) error {
		_, err := b.Engine.Start(ctx, name, ev)
		return err
	}
}

// Cancel ends the active conversation.
func (b *Bot) Cancel(ctx context.Context, ev flow.Event, _ string) error {
	active, err := b.Engine.Cancel(ctx, ev.UserID)
	if err != nil {
		return b.report(ctx, ev, err)
	}
	key := "cancel.none"
	if active {
		key = "cancel.done"
	}
	return b.report(ctx, ev, b.say(ctx, ev, key, &Keyboard{Remove: true}))
}

// SetLang shows the language picker.
func (b *Bot) SetLang(ctx context.Context, ev flow.Event, _ string) error {
	return b.report(ctx, ev, b.languageMenu(ctx, ev))
}

func (b *Bot) languageMenu(ctx context.Context, ev flow.Event) error {
	kb := &Keyboard{}
	for _, row := range language.Menu(ev.Lang) {
		buttons := make([]Button, 0, len(row))
		for _, l := range row {
			buttons = append(buttons, Button{Text: l.Name, Data: l.Name})
		}
		kb.Inline = append(kb.Inline, buttons)
	}
	return b.say(ctx, ev, "lang.select", kb)
}

// Support lists the support options.
func (b *Bot) Support(ctx context.Context, ev flow.Event, _ string) error {
	return b.report(ctx, ev, b.supportMenu(ctx, ev))
}

func (b *Bot) supportMenu(ctx context.Context, ev flow.Event) error {
	if b.Payments == nil || !b.Payments.Enabled() {
		return b.say(ctx, ev, "support.unavailable", nil)
	}
	kb := &Keyboard{}
	for _, o := range b.Payments.Options() {
		kb.Inline = append(kb.Inline, []Button{{Text: o.Label, Data: callback.InvoicePayload(o.ID)}})
	}
	return b.say(ctx, ev, "support.menu", kb)
}

var errSendUsage = errors.New("usage")

// SendToUser relays an admin message: /send <user_id> <text>.
func (b *Bot) SendToUser(ctx context.Context, ev flow.Event, args string) error {
	target, text, err := parseSendArgs(args)
	if err != nil {
		return b.report(ctx, ev, b.say(ctx, ev, "send.usage", nil))
	}
	if err := b.Messenger.SendText(ctx, target, text, nil); err != nil {
		return b.report(ctx, ev, err)
	}
	return b.report(ctx, ev, b.say(ctx, ev, "send.done", nil))
}

func parseSendArgs(args string) (int64, string, error) {
	fields := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(fields) != 2 {
		return 0, "", errSendUsage
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	text := strings.TrimSpace(fields[1])
	if err != nil || id == 0 || text == "" {
		return 0, "", errSendUsage
	}
	return id, text, nil
}
