package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// ImportDir walks root and returns every file matching pattern as a
// decoded Candidate, sorted by path. An empty pattern means
// DefaultPattern. Files that are too large, binary, or of no known kind
// are skipped.
func ImportDir(ctx context.Context, root, pattern string) ([]Candidate, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("import %s: not a directory", root)
	}

	var (
		mu    sync.Mutex
		found []Candidate
	)
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || path == root {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return fastwalk.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}

		c, err := ReadFile(path)
		if err != nil {
			return nil
		}
		c.Name = rel

		mu.Lock()
		found = append(found, c)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", root, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

// ReadFile loads a single file as a Candidate named after its base name
func ReadFile(path string) (Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, err
	}
	if info.Size() > MaxFileSize {
		return Candidate{}, fmt.Errorf("%w: %s", ErrTooLarge, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Candidate{}, err
	}
	c, err := NewCandidate(filepath.Base(path), data)
	if err != nil {
		return Candidate{}, err
	}
	c.Path = path
	return c, nil
}

// NewCandidate decodes raw file content received under name
func NewCandidate(name string, data []byte) (Candidate, error) {
	if len(data) > MaxFileSize {
		return Candidate{}, fmt.Errorf("%w: %s", ErrTooLarge, name)
	}
	if len(data) > 0 && !IsText(data) {
		return Candidate{}, fmt.Errorf("%w: %s", ErrBinary, name)
	}

	kind, err := DetectKind(name, data)
	if err != nil {
		return Candidate{}, err
	}
	content, cs, err := Decode(data)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{
		Name:    name,
		Kind:    kind,
		Content: content,
		Charset: cs,
		Size:    int64(len(data)),
	}, nil
}
