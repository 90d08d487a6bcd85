package chatsync

// View is the rendering side of the sync loop. Implementations must be safe
// for use from several goroutines.
type View interface {
	// Replace drops every rendered entry and renders entries in order.
	Replace(entries []Entry)
	// Append renders one more entry after the existing ones.
	Append(e Entry)
	ScrollToBottom()
	SetInputEnabled(enabled bool)
	ClearInput()
	// Alert shows a blocking, user-visible message.
	Alert(msg string)
}
