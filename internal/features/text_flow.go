package features

import (
	"context"
	"strings"

	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/session"
)

// StateText waits for the text to typeset.
const StateText flow.State = "awaiting-text"

// textFlow is started by /text and turns one text message into a PDF file.
func (b *Bot) textFlow() flow.Flow {
	return flow.Flow{
		Name: FlowText,
		Entry: func(ctx context.Context, _ *session.Session, ev flow.Event) (flow.State, error) {
			return StateText, b.say(ctx, ev, "text.ask", b.reply(ev, []string{"btn.cancel"}))
		},
		States: map[flow.State]flow.Handler{
			StateText: b.onText,
		},
	}
}

func (b *Bot) onText(ctx context.Context, _ *session.Session, ev flow.Event) (flow.State, error) {
	if b.is(ev, "btn.cancel") || b.is(ev, "btn.back") {
		return b.cancelled(ctx, ev)
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" || ev.File != nil {
		return "", failure.UserInput("text.invalid")
	}
	if err := b.say(ctx, ev, "text.working", &Keyboard{Remove: true}); err != nil {
		return "", err
	}
	res, err := b.PDF.TextToPDF(ctx, text)
	if err != nil {
		return "", err
	}
	return flow.End, b.deliver(ctx, ev, res)
}
