// Package tgui builds Telegram reply keyboards and escapes message text.
package tgui

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ReplyKeyboard converts label rows into a Telegram reply keyboard.
// Empty rows and blank labels are skipped.
func ReplyKeyboard(rows [][]string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{ResizeKeyboard: true}
	kb := make([][]tele.ReplyButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tele.ReplyButton, 0, len(row))
		for _, label := range row {
			if strings.TrimSpace(label) == "" {
				continue
			}
			btns = append(btns, tele.ReplyButton{Text: label})
		}
		if len(btns) > 0 {
			kb = append(kb, btns)
		}
	}
	rm.ReplyKeyboard = kb
	return rm
}

// RemoveKeyboard tells the client to drop the current reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// EscapeMarkdown escapes the characters Telegram's legacy Markdown parser
// treats as markup.
func EscapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"`", "\\`",
		"[", "\\[",
	)
	return r.Replace(s)
}
