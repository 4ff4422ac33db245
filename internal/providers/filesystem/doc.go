// Package filesystem moves buffers between the workspace and disk.
//
// This package is organized into specialized modules:
//   - search: Directory import (fastwalk traversal, doublestar matching)
//   - metadata: Kind detection and charset decoding
//   - archives: Workspace export as a ZIP archive
//
// Imported files become Candidates; the caller decides how they enter the
// store. Nothing here touches the store directly.
//
// Example Usage:
//
//	candidates, err := filesystem.ImportDir(ctx, "./site", "")
//	for _, c := range candidates {
//		buf, _ := store.Create(ctx, c.Name, c.Kind)
//		store.UpdateContent(ctx, buf.ID, c.Content)
//	}
package filesystem
