package telegram

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplitTextShortPassesThrough(t *testing.T) {
	chunks := splitText("hello", 100)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	text := strings.Repeat("line one\n", 20)
	chunks := splitText(text, 60)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 60 {
			t.Fatalf("chunk %d exceeds the limit: %d runes", i, len([]rune(c)))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d carries boundary newlines: %q", i, c)
		}
	}

	// No content may be lost.
	joined := strings.Join(chunks, "\n") + "\n"
	if strings.ReplaceAll(joined, "\n", "") != strings.ReplaceAll(text, "\n", "") {
		t.Fatalf("content lost in split")
	}
}

func TestSplitTextHardBreakWithoutNewlines(t *testing.T) {
	text := strings.Repeat("x", 150)
	chunks := splitText(text, 60)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	if total != 150 {
		t.Fatalf("content lost: %d runes", total)
	}
}

func TestChatTitleFallbacks(t *testing.T) {
	// Exercised through the helper rather than a live bot.
	cases := []struct {
		title, first, last, user string
		want                     string
	}{
		{"Ops Team", "", "", "", "Ops Team"},
		{"", "Alice", "Smith", "alice", "Alice Smith"},
		{"", "Alice", "", "", "Alice"},
		{"", "", "", "alice", "@alice"},
		{"", "", "", "", ""},
	}
	for _, c := range cases {
		got := chatTitle(&tele.Chat{
			Title:     c.title,
			FirstName: c.first,
			LastName:  c.last,
			Username:  c.user,
		})
		if got != c.want {
			t.Fatalf("chatTitle(%+v) = %q, want %q", c, got, c.want)
		}
	}
}
