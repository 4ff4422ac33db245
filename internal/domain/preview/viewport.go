package preview

import (
	"errors"
	"fmt"
)

// ErrUnknownViewMode is returned for view modes other than desktop, tablet
// and mobile.
var ErrUnknownViewMode = errors.New("unknown view mode")

// ViewMode selects the preview viewport dimensions
type ViewMode string

const (
	ViewDesktop ViewMode = "desktop"
	ViewTablet  ViewMode = "tablet"
	ViewMobile  ViewMode = "mobile"
)

// ViewModes lists the modes in toolbar order
var ViewModes = []ViewMode{ViewDesktop, ViewTablet, ViewMobile}

// Dimensions are CSS lengths applied to the preview frame
type Dimensions struct {
	Width  string `json:"width"`
	Height string `json:"height"`
}

var dimensions = map[ViewMode]Dimensions{
	ViewDesktop: {Width: "100%", Height: "100%"},
	ViewTablet:  {Width: "768px", Height: "1024px"},
	ViewMobile:  {Width: "375px", Height: "667px"},
}

// Dimensions returns the frame size for m
func (m ViewMode) Dimensions() (Dimensions, bool) {
	d, ok := dimensions[m]
	return d, ok
}

// ParseViewMode validates user input
func ParseViewMode(s string) (ViewMode, error) {
	m := ViewMode(s)
	if _, ok := dimensions[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownViewMode, s)
	}
	return m, nil
}

// Viewport is presentation state of the preview. Changing it never
// re-executes the document.
type Viewport struct {
	Mode       ViewMode `json:"mode"`
	FullScreen bool     `json:"full_screen"`
	Dimensions
}

// NewViewport builds a viewport with dimensions filled in
func NewViewport(mode ViewMode, fullScreen bool) Viewport {
	d, ok := mode.Dimensions()
	if !ok {
		mode = ViewDesktop
		d = dimensions[ViewDesktop]
	}
	return Viewport{Mode: mode, FullScreen: fullScreen, Dimensions: d}
}
