package filesystem

import (
	"errors"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// DefaultPattern selects the files a directory import picks up
const DefaultPattern = "**/*.{html,htm,css,js,mjs}"

// MaxFileSize caps a single imported file
const MaxFileSize = 4 * 1024 * 1024

var (
	// ErrUnknownKind is returned when a file is not html, css or js
	ErrUnknownKind = errors.New("cannot determine buffer kind")
	// ErrTooLarge is returned for files over MaxFileSize
	ErrTooLarge = errors.New("file too large")
	// ErrBinary is returned for content that does not decode as text
	ErrBinary = errors.New("file is not text")
)

// Candidate is a decoded file ready to become a buffer
type Candidate struct {
	Name    string     `json:"name"`
	Path    string     `json:"path"`
	Kind    types.Kind `json:"type"`
	Content string     `json:"content"`
	Charset string     `json:"charset"`
	Size    int64      `json:"size"`
}

// skipDirs are never descended into
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
}
