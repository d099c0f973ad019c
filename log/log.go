// Package log re-exports the structured logger used across the node, so
// that internal packages depend on a single narrow import instead of each
// pulling github.com/luxfi/log directly.
package log

import luxlog "github.com/luxfi/log"

// Logger is the structured, leveled logger interface used by every
// long-lived component (scheduler, block builder, stream handler, consensus
// driver, propeller state manager). Construction always takes one in rather
// than reaching for a package-level global.
type Logger = luxlog.Logger

// NewNoOp returns a Logger that discards everything, for tests and
// components constructed without an explicit logger.
func NewNoOp() Logger {
	return luxlog.NewNoOpLogger()
}
