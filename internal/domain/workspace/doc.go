// Package workspace owns the buffer store: the ordered set of named
// html/css/js buffers and the active buffer of each kind.
//
// Every mutation is serialized by one mutex, written through to the
// storage.KV collaborator, and then reported to observers as a Change.
// Operations on unknown or stale ids are silent no-ops that return false.
package workspace
