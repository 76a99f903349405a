// Package doclog wires structured logging for the rest of the module. It
// mirrors zap's own zap.L()/zap.ReplaceGlobals convention: a library stays
// silent by default and a host process installs a real logger at startup.
package doclog

import "go.uber.org/zap"

var global = zap.NewNop()

// L returns the process-wide logger. Safe for concurrent use.
func L() *zap.Logger {
	return global
}

// Replace installs logger as the process-wide logger. Intended to be called
// once, at process startup, by a host binary (see cmd/automergedemo).
func Replace(logger *zap.Logger) {
	if logger == nil {
		return
	}
	global = logger
}
