// Package keyboard builds telebot reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is an inline button whose Data reaches the bot verbatim, with no
// telebot unique prefix.
type InlineBtn struct {
	Text string
	Data string
}

// Remove hides the reply keyboard.
func Remove() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// Reply builds a resized reply keyboard, one row per slice of labels.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	out := make([]tele.Row, len(rows))
	for i, row := range rows {
		btns := make([]tele.Btn, len(row))
		for j, label := range row {
			btns[j] = m.Text(label)
		}
		out[i] = m.Row(btns...)
	}
	m.Reply(out...)
	return m
}

// Inline builds an inline keyboard.
func Inline(rows ...[]InlineBtn) *tele.ReplyMarkup {
	kb := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		kb[i] = make([]tele.InlineButton, len(row))
		for j, b := range row {
			kb[i][j] = tele.InlineButton{Text: b.Text, Data: b.Data}
		}
	}
	return &tele.ReplyMarkup{InlineKeyboard: kb}
}
