// Package preview turns buffer contents into a running, isolated preview.
//
// The pipeline has three stages:
//   - Aggregator: one Debouncer per kind collapses bursts of edits into
//     settled values and delivers the full Composite on every expiry
//   - Assemble: builds one executable document with a fault harness that
//     shows uncaught errors in a #runtime-error-display overlay
//   - Renderer: keeps exactly one live execution context, destroying the
//     previous one before each rebuild
//
// Execution contexts come from a Boundary implementation; see the sandbox
// and chrome packages under internal/providers/browser.
package preview
