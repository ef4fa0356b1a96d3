// Package logging configures the structured logger every component in this
// replica uses. It mirrors the original system's split between a
// request-scoped logger and an error-scoped logger: both are zerolog
// loggers with a distinct "component" field rather than separate types, so
// callers can filter by field instead of by output stream.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the base logger for a replica process. In development
// (pretty=true) output is a human-readable console writer; in production it
// is newline-delimited JSON suitable for log aggregation.
func New(nodeID string, pretty bool) zerolog.Logger {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(out).
		With().
		Timestamp().
		Str("node", nodeID).
		Logger()
}

// Request returns a child logger tagged for the HTTP request-logging
// middleware, mirroring the original system's request_logger target.
func Request(base zerolog.Logger) zerolog.Logger {
	return base.With().Str("component", "request").Logger()
}

// Error returns a child logger tagged for error paths, mirroring the
// original system's error_logger target.
func Error(base zerolog.Logger) zerolog.Logger {
	return base.With().Str("component", "error").Logger()
}

// Replica returns a child logger tagged for the replica controller, scoped
// further to a single document.
func Replica(base zerolog.Logger, documentID string) zerolog.Logger {
	return base.With().Str("component", "replica").Str("document_id", documentID).Logger()
}

// Broadcast returns a child logger tagged for the broadcast gateway.
func Broadcast(base zerolog.Logger) zerolog.Logger {
	return base.With().Str("component", "broadcast").Logger()
}

// Proxy returns a child logger tagged for the reverse proxy collaborator.
func Proxy(base zerolog.Logger) zerolog.Logger {
	return base.With().Str("component", "proxy").Logger()
}
