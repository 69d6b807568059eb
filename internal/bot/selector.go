package bot

import "strings"

// Candidate is one selectable recipient: a chat or a chat group. ID is the
// chat_id or group_id depending on which category was loaded.
type Candidate struct {
	ID    int64
	Title string
}

// Selection toggles candidates in and out of a picked set and renders the
// set as a checklist keyboard. The candidate list is reloaded from the
// repository before every toggle via Reload; only the picked set persists
// across reloads, so chats registered mid-wizard show up on the next
// render.
//
// Membership is keyed by candidate ID. Incoming button presses carry the
// title text, so titles resolve to candidates via an index; among
// candidates listed together titles are assumed distinct, and on a
// duplicate the later candidate wins.
type Selection struct {
	candidates []Candidate
	byTitle    map[string]Candidate
	picked     map[int64]bool
	order      []Candidate
}

func NewSelection(candidates []Candidate) *Selection {
	s := &Selection{picked: make(map[int64]bool)}
	s.Reload(candidates)
	return s
}

// Reload replaces the candidate list and rebuilds the title index. The
// picked set is kept as-is, including picks whose candidate no longer
// lists.
func (s *Selection) Reload(candidates []Candidate) {
	s.candidates = candidates
	s.byTitle = make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		s.byTitle[c.Title] = c
	}
}

// Toggle flips the candidate named by the pressed button. The label may
// carry a checklist glyph prefix, which is stripped before lookup.
// Returns false when the label names no known candidate.
func (s *Selection) Toggle(label string, labels *Labels) bool {
	title := stripGlyph(label, labels)
	c, ok := s.byTitle[title]
	if !ok {
		return false
	}
	if s.picked[c.ID] {
		delete(s.picked, c.ID)
		for i, p := range s.order {
			if p.ID == c.ID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return true
	}
	s.picked[c.ID] = true
	s.order = append(s.order, c)
	return true
}

// Selected returns the picked candidates in the order they were toggled on.
func (s *Selection) Selected() []Candidate {
	out := make([]Candidate, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Selection) Len() int { return len(s.order) }

func (s *Selection) Has(id int64) bool { return s.picked[id] }

// Checklist renders one keyboard row per candidate, prefixed with the
// selected or unselected glyph, followed by the confirm row and the
// cancel row. confirmKey picks the confirm button wording (confirm for
// task recipients, finish for the group wizard).
func (s *Selection) Checklist(labels *Labels, confirmKey string) [][]string {
	rows := make([][]string, 0, len(s.candidates)+2)
	for _, c := range s.candidates {
		glyph := labels.Get(KeyGlyphUnselected)
		if s.picked[c.ID] {
			glyph = labels.Get(KeyGlyphSelected)
		}
		rows = append(rows, []string{glyph + " " + c.Title})
	}
	rows = append(rows, []string{labels.Get(confirmKey)})
	rows = append(rows, []string{labels.Get(KeyBtnBack)})
	return rows
}

func stripGlyph(label string, labels *Labels) string {
	for _, key := range []string{KeyGlyphSelected, KeyGlyphUnselected} {
		g := labels.Get(key) + " "
		if strings.HasPrefix(label, g) {
			return strings.TrimPrefix(label, g)
		}
	}
	return label
}
