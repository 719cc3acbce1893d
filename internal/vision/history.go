package vision

import (
	"fmt"
	"strings"
)

// DefaultHistorySize is the number of frame assessments kept per session.
const DefaultHistorySize = 10

// Entry is one remembered frame assessment.
type Entry struct {
	CapturedAtMs int64      `json:"captured_at_ms"`
	Observation  string     `json:"observation"`
	StepStatus   StepStatus `json:"step_status"`
}

// History is a fixed-capacity FIFO of recent assessments, oldest first.
// It is not safe for concurrent use; the owning session lane serializes access.
type History struct {
	buf   []Entry
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]Entry, capacity)}
}

// Add appends e, evicting the oldest entry once full.
func (h *History) Add(e Entry) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = e
		h.n++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) Len() int { return h.n }

func (h *History) Cap() int { return len(h.buf) }

// Entries returns a copy ordered oldest to newest.
func (h *History) Entries() []Entry {
	out := make([]Entry, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Recent returns up to n newest entries, oldest first.
func (h *History) Recent(n int) []Entry {
	all := h.Entries()
	if n >= 0 && len(all) > n {
		return all[len(all)-n:]
	}
	return all
}

// Latest returns the newest entry.
func (h *History) Latest() (Entry, bool) {
	if h.n == 0 {
		return Entry{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}

func (h *History) Reset() {
	h.start, h.n = 0, 0
}

// Summary renders the newest n entries as prompt context, one per line.
func (h *History) Summary(n int, nowMs int64) string {
	var b strings.Builder
	for _, e := range h.Recent(n) {
		ago := (nowMs - e.CapturedAtMs) / 1000
		if ago < 0 {
			ago = 0
		}
		fmt.Fprintf(&b, "- %ds ago [%s] %s\n", ago, e.StepStatus, e.Observation)
	}
	return strings.TrimRight(b.String(), "\n")
}
