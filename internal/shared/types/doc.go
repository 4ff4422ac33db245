// Package types provides shared data structures for the LivePen backend.
//
// This package defines the core types passed between the buffer store,
// the preview pipeline and the API layer.
//
// Core Types:
//   - Buffer: Named, kind-tagged unit of editable text
//   - Kind: Content kind (html, css, js)
//   - Selection: Active buffer per kind
//   - Workspace: Read model of buffers plus selection
//   - Composite: Settled markup/style/script triple fed to the renderer
//
// Example Usage:
//
//	buf := types.Buffer{
//	    ID:      types.BufferID(id.Default().NewID(id.BufferPrefix)),
//	    Name:    "index.html",
//	    Kind:    types.KindHTML,
//	    Content: "<p>hi</p>",
//	}
package types
