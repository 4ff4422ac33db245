package filesystem

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// PreviewEntry is the archive name of the assembled document
const PreviewEntry = "preview.html"

// ExportZip writes every buffer of ws plus the assembled document to w.
// Buffer names become entry names; repeats get a numeric suffix so no
// entry is overwritten. Entries carry the creation time of their buffer
// when the id records one. An empty document omits the preview entry.
func ExportZip(w io.Writer, ws types.Workspace, document string) error {
	zw := zip.NewWriter(w)
	names := newNameSet()
	modified := time.Now()

	if document != "" {
		names.claim(PreviewEntry)
	}
	for _, buf := range ws.Buffers {
		name := names.claim(entryName(buf))
		stamp := modified
		if created, ok := id.Created(buf.ID.String()); ok {
			stamp = created
		}
		if err := writeEntry(zw, name, buf.Content, stamp); err != nil {
			zw.Close()
			return err
		}
	}
	if document != "" {
		if err := writeEntry(zw, PreviewEntry, document, modified); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip close failed: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name, content string, modified time.Time) error {
	writer, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	if _, err := io.WriteString(writer, content); err != nil {
		return fmt.Errorf("zip write %s: %w", name, err)
	}
	return nil
}

// entryName turns a buffer name into a safe relative archive path
func entryName(buf types.Buffer) string {
	name := strings.ReplaceAll(buf.Name, "\\", "/")
	name = path.Clean("/" + name)
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." {
		name = "untitled"
	}
	if path.Ext(name) == "" {
		name += "." + string(buf.Kind)
	}
	return name
}

// nameSet hands out unique entry names, matching case-insensitively so
// archives extract cleanly on case-folding filesystems
type nameSet map[string]bool

func newNameSet() nameSet { return make(nameSet) }

func (s nameSet) claim(name string) string {
	candidate := name
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; s[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
	s[strings.ToLower(candidate)] = true
	return candidate
}
