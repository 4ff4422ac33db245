// Package storage provides the key-value collaborator that persists the
// workspace: FileKV (one JSON file per key, atomic rename) and MemoryKV.
package storage
