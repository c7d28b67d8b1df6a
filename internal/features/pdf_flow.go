package features

import (
	"context"
	"strconv"
	"strings"

	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/pdf"
	"github.com/m3rciful/pdfbot/internal/session"
)

// Flow names.
const (
	FlowPDF      = "pdf"
	FlowMerge    = "merge"
	FlowImages   = "images"
	FlowFeedback = "feedback"
	FlowText     = "text"
)

// States of the document task conversation.
const (
	StatePDFTask       flow.State = "awaiting-pdf-task"
	StateCropType      flow.State = "awaiting-crop-type"
	StatePercentage    flow.State = "awaiting-percentage"
	StateMargin        flow.State = "awaiting-margin"
	StateWatermarkText flow.State = "awaiting-watermark-text"
)

const slotFile = "file"

// pdfFlow starts when a user sends a PDF document. Crop is a sub-graph whose
// Back leads to the task menu; Back in the task menu ends the conversation.
func (b *Bot) pdfFlow() flow.Flow {
	return flow.Flow{
		Name:    FlowPDF,
		Trigger: func(ev flow.Event) bool { return ev.File.IsPDF() },
		Entry:   b.receivePDF,
		States: map[flow.State]flow.Handler{
			StatePDFTask:       b.onPDFTask,
			StateCropType:      b.onCropType,
			StatePercentage:    b.onPercentage,
			StateMargin:        b.onMargin,
			StateWatermarkText: b.onWatermarkText,
		},
	}
}

func (b *Bot) receivePDF(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
	if big, err := b.tooLarge(ctx, ev); big || err != nil {
		return flow.End, err
	}
	if err := sess.Set(slotFile, ev.File); err != nil {
		return "", err
	}
	return b.askTask(ctx, ev)
}

func (b *Bot) askTask(ctx context.Context, ev flow.Event) (flow.State, error) {
	kb := b.reply(ev, []string{"btn.crop", "btn.watermark"}, []string{"btn.cancel"})
	return StatePDFTask, b.say(ctx, ev, "pdf.choose_task", kb)
}

func (b *Bot) askCropType(ctx context.Context, ev flow.Event) (flow.State, error) {
	kb := b.reply(ev, []string{"btn.by_percentage", "btn.by_margin"}, []string{"btn.back"})
	return StateCropType, b.say(ctx, ev, "crop.choose_type", kb)
}

func (b *Bot) cancelled(ctx context.Context, ev flow.Event) (flow.State, error) {
	return flow.End, b.say(ctx, ev, "cancel.done", &Keyboard{Remove: true})
}

func (b *Bot) onPDFTask(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
	switch {
	case ev.File.IsPDF():
		// A new document replaces the one waiting for a task.
		return b.receivePDF(ctx, sess, ev)
	case b.is(ev, "btn.crop"):
		return b.askCropType(ctx, ev)
	case b.is(ev, "btn.watermark"):
		return StateWatermarkText, b.say(ctx, ev, "watermark.ask_text", b.reply(ev, []string{"btn.back"}))
	case b.is(ev, "btn.cancel"), b.is(ev, "btn.back"):
		return b.cancelled(ctx, ev)
	}
	return "", failure.UserInput("pdf.choose_task")
}

func (b *Bot) onCropType(ctx context.Context, _ *session.Session, ev flow.Event) (flow.State, error) {
	switch {
	case b.is(ev, "btn.by_percentage"):
		return StatePercentage, b.say(ctx, ev, "crop.ask_percentage", b.reply(ev, []string{"btn.back"}))
	case b.is(ev, "btn.by_margin"):
		return StateMargin, b.say(ctx, ev, "crop.ask_margin", b.reply(ev, []string{"btn.back"}))
	case b.is(ev, "btn.back"):
		return b.askTask(ctx, ev)
	}
	return "", failure.UserInput("crop.choose_type")
}

func (b *Bot) onPercentage(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
	if b.is(ev, "btn.back") {
		return b.askCropType(ctx, ev)
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(ev.Text), 64)
	if err != nil || !(p > 0 && p < 1) {
		return "", failure.UserInput("crop.invalid_percentage")
	}
	return b.crop(ctx, sess, ev, pdf.CropOptions{Percentage: p})
}

func (b *Bot) onMargin(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
	if b.is(ev, "btn.back") {
		return b.askCropType(ctx, ev)
	}
	m, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || m <= 0 {
		return "", failure.UserInput("crop.invalid_margin")
	}
	return b.crop(ctx, sess, ev, pdf.CropOptions{Margin: m})
}

func (b *Bot) crop(ctx context.Context, sess *session.Session, ev flow.Event, opt pdf.CropOptions) (flow.State, error) {
	file, err := session.Lookup[flow.FileRef](sess, slotFile)
	if err != nil {
		return "", err
	}
	if err := b.say(ctx, ev, "crop.working", &Keyboard{Remove: true}); err != nil {
		return "", err
	}
	res, err := b.PDF.Crop(ctx, toPDFFile(file), opt)
	if err != nil {
		return "", err
	}
	return flow.End, b.deliver(ctx, ev, res)
}

func (b *Bot) onWatermarkText(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
	if b.is(ev, "btn.back") {
		return b.askTask(ctx, ev)
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" || ev.File != nil {
		return "", failure.UserInput("watermark.invalid")
	}
	file, err := session.Lookup[flow.FileRef](sess, slotFile)
	if err != nil {
		return "", err
	}
	if err := b.say(ctx, ev, "watermark.working", &Keyboard{Remove: true}); err != nil {
		return "", err
	}
	res, err := b.PDF.Watermark(ctx, toPDFFile(file), text)
	if err != nil {
		return "", err
	}
	return flow.End, b.deliver(ctx, ev, res)
}
