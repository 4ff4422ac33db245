package filesystem

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extensionKinds maps lower-case file extensions to buffer kinds
var extensionKinds = map[string]types.Kind{
	".html": types.KindHTML,
	".htm":  types.KindHTML,
	".css":  types.KindCSS,
	".js":   types.KindJS,
	".mjs":  types.KindJS,
	".cjs":  types.KindJS,
}

// chardet reports a few names the WHATWG label table does not know
var charsetAliases = map[string]string{
	"gb-18030": "gb18030",
}

// DetectKind picks a buffer kind from the file name, falling back to
// content sniffing when the extension says nothing.
func DetectKind(name string, data []byte) (types.Kind, error) {
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(name))]; ok {
		return kind, nil
	}

	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case m.Is("text/html"):
			return types.KindHTML, nil
		case m.Is("text/css"):
			return types.KindCSS, nil
		case m.Is("text/javascript"), m.Is("application/javascript"):
			return types.KindJS, nil
		}
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnknownKind, name, mtype.String())
}

// IsText reports whether sniffed content looks like text
func IsText(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// Decode converts file content to UTF-8. Valid UTF-8 passes through with
// any byte order mark removed; anything else is transcoded from the
// charset chardet considers most likely.
func Decode(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), "utf-8", nil
	}

	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrBinary, err)
	}

	label := strings.ToLower(result.Charset)
	if alias, ok := charsetAliases[label]; ok {
		label = alias
	}
	if _, name := charset.Lookup(label); name == "" {
		// windows-1252 maps every byte, so text never fails to decode
		label = "windows-1252"
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", label, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", label, err)
	}
	return strings.TrimPrefix(string(out), "\ufeff"), label, nil
}
