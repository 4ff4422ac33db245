package types

// Composite is the settled markup/style/script triple
type Composite struct {
	Markup string `json:"html"`
	Style  string `json:"css"`
	Script string `json:"js"`
}

// Get returns the component for kind
func (c Composite) Get(k Kind) string {
	switch k {
	case KindHTML:
		return c.Markup
	case KindCSS:
		return c.Style
	case KindJS:
		return c.Script
	}
	return ""
}

// Set replaces the component for kind
func (c *Composite) Set(k Kind, v string) {
	switch k {
	case KindHTML:
		c.Markup = v
	case KindCSS:
		c.Style = v
	case KindJS:
		c.Script = v
	}
}
