package chatsync

import (
	"bytes"
	"html/template"
	"strings"
	"sync"
	"time"

	"propchat/internal/utils"
)

var entryTemplates = template.Must(template.New("entries").Parse(`
{{- define "text" -}}
<div class="chat-message {{.Side}}"><div class="message-content">{{.Entry.Text}}</div><small class="message-time">{{.Time}}</small></div>
{{- end -}}
{{- define "attachment" -}}
<div class="chat-message {{.Side}}"><div class="message-content"><div class="file-attachment"><i class="fas fa-file"></i><span class="file-name">{{.Entry.Attachment.Name}}</span><a href="{{.Entry.Attachment.URL}}" class="download-btn" download>Download</a></div></div><small class="message-time">{{.Time}}</small></div>
{{- end -}}
`))

type entryData struct {
	Entry Entry
	Side  string
	Time  string
}

// RenderHTML renders e as the markup of one message element.
func RenderHTML(e Entry, loc *time.Location) (string, error) {
	data := entryData{Entry: e, Side: "receiver"}
	if e.Mine {
		data.Side = "sender"
	}
	if !e.At.IsZero() {
		data.Time = utils.FormatTimeLabel(e.At, loc)
	}

	var name string
	switch e.Kind {
	case KindAttachment:
		name = "attachment"
	default:
		name = "text"
	}

	var buf bytes.Buffer
	if err := entryTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HTMLView keeps the rendered message container in memory, the way a page
// would hold it in the DOM.
type HTMLView struct {
	mu  sync.Mutex
	loc *time.Location

	elements     []string
	inputEnabled bool
	inputCleared int
	scrolls      int
	alerts       []string
}

var _ View = (*HTMLView)(nil)

// NewHTMLView creates an empty view rendering time labels in loc (UTC when nil).
func NewHTMLView(loc *time.Location) *HTMLView {
	if loc == nil {
		loc = time.UTC
	}
	return &HTMLView{loc: loc, inputEnabled: true}
}

func (v *HTMLView) render(e Entry) string {
	out, err := RenderHTML(e, v.loc)
	if err != nil {
		return "<!-- " + template.HTMLEscapeString(err.Error()) + " -->"
	}
	return out
}

func (v *HTMLView) Replace(entries []Entry) {
	elements := make([]string, 0, len(entries))
	for _, e := range entries {
		elements = append(elements, v.render(e))
	}
	v.mu.Lock()
	v.elements = elements
	v.mu.Unlock()
}

func (v *HTMLView) Append(e Entry) {
	el := v.render(e)
	v.mu.Lock()
	v.elements = append(v.elements, el)
	v.mu.Unlock()
}

func (v *HTMLView) ScrollToBottom() {
	v.mu.Lock()
	v.scrolls++
	v.mu.Unlock()
}

func (v *HTMLView) SetInputEnabled(enabled bool) {
	v.mu.Lock()
	v.inputEnabled = enabled
	v.mu.Unlock()
}

func (v *HTMLView) ClearInput() {
	v.mu.Lock()
	v.inputCleared++
	v.mu.Unlock()
}

func (v *HTMLView) Alert(msg string) {
	v.mu.Lock()
	v.alerts = append(v.alerts, msg)
	v.mu.Unlock()
}

// Elements returns a copy of the rendered message elements.
func (v *HTMLView) Elements() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.elements...)
}

// Len returns the number of rendered message elements.
func (v *HTMLView) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.elements)
}

// HTML returns the whole message container.
func (v *HTMLView) HTML() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return `<div id="chat-messages" class="chat-messages">` + strings.Join(v.elements, "") + `</div>`
}

func (v *HTMLView) InputEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inputEnabled
}

func (v *HTMLView) InputCleared() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inputCleared
}

func (v *HTMLView) Scrolls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrolls
}

func (v *HTMLView) Alerts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.alerts...)
}
