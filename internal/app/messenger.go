package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/m3rciful/pdfbot/core/telegram/keyboard"
	"github.com/m3rciful/pdfbot/core/telegram/middleware"
	tgsender "github.com/m3rciful/pdfbot/core/telegram/sender"
	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/features"
	"github.com/m3rciful/pdfbot/internal/payment"

	tele "gopkg.in/telebot.v4"
)

// messenger talks to the Bot API for the features and the PDF service.
// Every call goes through the dispatcher's retry policy and its errors are
// classified into failure kinds.
type messenger struct {
	bot  *tele.Bot
	disp *tgsender.Dispatcher
}

func (m *messenger) SendText(ctx context.Context, chatID int64, text string, kb *features.Keyboard) error {
	markup := toMarkup(kb)
	opts := []any{}
	if markup != nil {
		opts = append(opts, markup)
	}
	err := m.disp.Do(ctx, "send.text", "sendMessage", func() error {
		_, err := m.bot.Send(tele.ChatID(chatID), text, opts...)
		return err
	})
	if err == nil {
		middleware.CountSent(ctx, markup != nil)
	}
	return classify(err)
}

func (m *messenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	err := m.disp.Do(ctx, "edit.text", "editMessageText", func() error {
		_, err := m.bot.Edit(msg, text)
		return err
	})
	return classify(err)
}

// Post queues text for chatID and returns without waiting for delivery. A
// full or closed queue falls back to a direct send.
func (m *messenger) Post(ctx context.Context, chatID int64, text string) error {
	run := func() error {
		_, err := m.bot.Send(tele.ChatID(chatID), text)
		return err
	}
	err := m.disp.Enqueue(ctx, "send.post", "sendMessage", run)
	if errors.Is(err, tgsender.ErrQueueFull) || errors.Is(err, tgsender.ErrQueueClosed) {
		return classify(run())
	}
	return err
}

func (m *messenger) SendDocument(ctx context.Context, chatID int64, path, name, caption string) error {
	doc := &tele.Document{File: tele.FromDisk(path), FileName: name, Caption: caption}
	err := m.disp.Do(ctx, "send.document", "sendDocument", func() error {
		_, err := m.bot.Send(tele.ChatID(chatID), doc, keyboard.Remove())
		return err
	})
	if err == nil {
		middleware.CountSent(ctx, true)
	}
	return classify(err)
}

func (m *messenger) SendInvoice(ctx context.Context, chatID int64, inv payment.Invoice) error {
	invoice := &tele.Invoice{
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload,
		Currency:    inv.Currency,
		Token:       inv.Token,
		Prices:      []tele.Price{{Label: inv.Label, Amount: inv.Amount}},
	}
	err := m.disp.Do(ctx, "send.invoice", "sendInvoice", func() error {
		_, err := m.bot.Send(tele.ChatID(chatID), invoice)
		return err
	})
	if err == nil {
		middleware.CountSent(ctx, false)
	}
	return classify(err)
}

// Fetch downloads a user upload to dst.
func (m *messenger) Fetch(ctx context.Context, fileID, dst string) error {
	return m.disp.Do(ctx, "file.download", "getFile", func() error {
		return m.bot.Download(&tele.File{FileID: fileID}, dst)
	})
}

// classify maps Bot API rejections to failure kinds. A pressed button whose
// query expired is stale; edits without changes and users who blocked the bot
// need no reaction.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "query is too old"), strings.Contains(msg, "query id is invalid"):
		return failure.Stale(err)
	case strings.Contains(msg, "message is not modified"):
		return failure.Silent(err)
	case strings.Contains(msg, "forbidden"):
		return failure.Silent(err)
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		return failure.Silent(err)
	}
	return err
}

// toMarkup converts a feature keyboard into telebot markup.
func toMarkup(kb *features.Keyboard) *tele.ReplyMarkup {
	switch {
	case kb == nil:
		return nil
	case kb.Remove:
		return keyboard.Remove()
	case len(kb.Inline) > 0:
		rows := make([][]keyboard.InlineBtn, 0, len(kb.Inline))
		for _, row := range kb.Inline {
			btns := make([]keyboard.InlineBtn, 0, len(row))
			for _, b := range row {
				btns = append(btns, keyboard.InlineBtn{Text: b.Text, Data: b.Data})
			}
			rows = append(rows, btns)
		}
		return keyboard.Inline(rows...)
	case len(kb.Reply) > 0:
		return keyboard.Reply(kb.Reply...)
	}
	return nil
}
