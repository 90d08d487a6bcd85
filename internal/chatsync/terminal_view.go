package chatsync

import (
	"fmt"
	"io"
	"sync"
	"time"

	"propchat/internal/utils"
)

// FormatLine renders e as one line of terminal output.
func FormatLine(e Entry, loc *time.Location) string {
	who := "them"
	if e.Mine {
		who = "me"
	}
	label := "--:--"
	if !e.At.IsZero() {
		label = utils.FormatTimeLabel(e.At, loc)
	}

	switch e.Kind {
	case KindAttachment:
		return fmt.Sprintf("[%s] %-4s 📎 %s <%s>", label, who, e.Attachment.Name, e.Attachment.URL)
	default:
		return fmt.Sprintf("[%s] %-4s %s", label, who, e.Text)
	}
}

// TerminalView prints the conversation to a writer, one line per message.
type TerminalView struct {
	mu  sync.Mutex
	out io.Writer
	loc *time.Location

	rendered     int
	inputEnabled bool
}

var _ View = (*TerminalView)(nil)

// NewTerminalView creates a view writing to out with time labels in loc.
func NewTerminalView(out io.Writer, loc *time.Location) *TerminalView {
	if loc == nil {
		loc = time.Local
	}
	return &TerminalView{out: out, loc: loc, inputEnabled: true}
}

func (v *TerminalView) Replace(entries []Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rendered > 0 {
		fmt.Fprintln(v.out, "──── conversation reloaded ────")
	}
	for _, e := range entries {
		fmt.Fprintln(v.out, FormatLine(e, v.loc))
	}
	v.rendered = len(entries)
}

func (v *TerminalView) Append(e Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintln(v.out, FormatLine(e, v.loc))
	v.rendered++
}

// ScrollToBottom is a no-op: a terminal always shows the latest line.
func (v *TerminalView) ScrollToBottom() {}

func (v *TerminalView) SetInputEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inputEnabled = enabled
}

// InputEnabled reports whether the prompt accepts a new message.
func (v *TerminalView) InputEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inputEnabled
}

func (v *TerminalView) ClearInput() {}

func (v *TerminalView) Alert(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "!! %s\n", msg)
}
