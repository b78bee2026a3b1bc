package core

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"pkt.systems/snippad/schema"
)

// editHistory is a linear undo/redo log of a file's code.
// cursor points at the entry matching the file's current code; -1 means empty.
type editHistory struct {
	entries []string
	cursor  int
	max     int
}

func newEditHistory(max int) *editHistory {
	if max < 0 {
		max = 0
	}
	return &editHistory{cursor: -1, max: max}
}

// Record appends code after the cursor, dropping any redo branch.
func (h *editHistory) Record(code string) {
	insertAt := h.cursor + 1
	if insertAt > len(h.entries) {
		insertAt = len(h.entries)
	}
	h.entries = append(h.entries[:insertAt], code)
	h.cursor = insertAt
	if h.max > 0 && len(h.entries) > h.max {
		drop := len(h.entries) - h.max
		h.entries = append([]string(nil), h.entries[drop:]...)
		h.cursor -= drop
		if h.cursor < 0 {
			h.cursor = 0
		}
	}
}

// Undo moves the cursor back and returns the entry to apply.
func (h *editHistory) Undo() (string, bool) {
	if h.cursor-1 < 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Redo moves the cursor forward and returns the entry to apply.
func (h *editHistory) Redo() (string, bool) {
	if h.cursor+1 >= len(h.entries) {
		return "", false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

func (h *editHistory) CanUndo() bool {
	return h.cursor-1 >= 0
}

func (h *editHistory) CanRedo() bool {
	return h.cursor+1 < len(h.entries)
}

// Snapshot returns a copy of the history with a line diff between the
// previous entry and the current one.
func (h *editHistory) Snapshot(id schema.FileID) schema.HistorySnapshot {
	snap := schema.HistorySnapshot{
		FileID:  id,
		Entries: append([]string(nil), h.entries...),
		Cursor:  h.cursor,
		CanUndo: h.CanUndo(),
		CanRedo: h.CanRedo(),
	}
	if h.cursor >= 1 && h.cursor < len(h.entries) {
		snap.Diff = lineDiff(h.entries[h.cursor-1], h.entries[h.cursor])
	}
	return snap
}

func lineDiff(before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out strings.Builder
	out.WriteString("--- previous\n")
	out.WriteString("+++ current\n")
	for _, diff := range diffs {
		prefix := " "
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitDiffLines(diff.Text) {
			out.WriteString(prefix)
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return out.String()
}

func splitDiffLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}
