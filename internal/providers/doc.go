// Package providers groups the host-side collaborators of the preview
// pipeline.
//
// Providers:
//   - browser: execution boundaries (goja sandbox, headless Chrome)
//   - filesystem: directory import, encoding detection, zip export
package providers
