// Package logging provides structured logging using uber/zap.
//
// Production logs are JSON on stdout, development logs are colored console
// lines on stderr, and the CLI tools log to stderr so their stdout can be
// piped. Components derive scoped children with Named and tag entries with
// the shared field helpers (Buffer, Kind, Handle, Client, Trace).
//
//	logger, _ := logging.New(logging.DefaultConfig())
//	logger.Named("workspace").Debug("buffer created", logging.Buffer(id))
package logging
