package types

import "fmt"

// BufferID identifies a buffer
type BufferID string

// String returns the raw identifier
func (id BufferID) String() string { return string(id) }

// Kind tags a buffer with the slot it may occupy in the preview
type Kind string

const (
	KindHTML Kind = "html"
	KindCSS  Kind = "css"
	KindJS   Kind = "js"
)

// Kinds lists every kind in preview order
var Kinds = [...]Kind{KindHTML, KindCSS, KindJS}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindHTML, KindCSS, KindJS:
		return true
	}
	return false
}

// Index returns the slot index of the kind, or -1
func (k Kind) Index() int {
	switch k {
	case KindHTML:
		return 0
	case KindCSS:
		return 1
	case KindJS:
		return 2
	}
	return -1
}

// Label returns the human readable language name
func (k Kind) Label() string {
	switch k {
	case KindHTML:
		return "HTML"
	case KindCSS:
		return "CSS"
	case KindJS:
		return "JavaScript"
	}
	return string(k)
}

// ParseKind converts user input into a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown buffer kind %q", s)
	}
	return k, nil
}

// Buffer is a named unit of editable source text
type Buffer struct {
	ID      BufferID `json:"id"`
	Name    string   `json:"name"`
	Kind    Kind     `json:"type"`
	Content string   `json:"content"`
}

// Selection records the active buffer of each kind. Nil means none.
type Selection struct {
	HTML *BufferID `json:"html"`
	CSS  *BufferID `json:"css"`
	JS   *BufferID `json:"js"`
}

// Get returns the active id for kind
func (s Selection) Get(k Kind) (BufferID, bool) {
	var p *BufferID
	switch k {
	case KindHTML:
		p = s.HTML
	case KindCSS:
		p = s.CSS
	case KindJS:
		p = s.JS
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set points the kind's slot at id
func (s *Selection) Set(k Kind, id BufferID) {
	v := id
	switch k {
	case KindHTML:
		s.HTML = &v
	case KindCSS:
		s.CSS = &v
	case KindJS:
		s.JS = &v
	}
}

// Clear empties the kind's slot
func (s *Selection) Clear(k Kind) {
	switch k {
	case KindHTML:
		s.HTML = nil
	case KindCSS:
		s.CSS = nil
	case KindJS:
		s.JS = nil
	}
}

// Clone returns a deep copy so callers cannot alias store state
func (s Selection) Clone() Selection {
	var out Selection
	for _, k := range Kinds {
		if id, ok := s.Get(k); ok {
			out.Set(k, id)
		}
	}
	return out
}

// Workspace is the read model consumed by the file-list UI
type Workspace struct {
	Buffers []Buffer  `json:"buffers"`
	Active  Selection `json:"active"`
}
