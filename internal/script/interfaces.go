// Package script provides the interpreter that evaluates user-supplied
// commands arriving over chat. Each conversation owns one Engine; the engine
// keeps interpreter state (variables, the logged-in principal) between
// evaluations.
package script

import "io"

// Engine is one stateful script evaluation context.
//
// Implementations are not safe for concurrent use; callers must serialize
// Evaluate calls. An in-flight evaluation runs to completion or failure;
// there is no cancellation.
type Engine interface {
	// Evaluate runs src in the engine's persistent scope and returns the
	// script's result value, or nil if it produced none. Script output
	// (print, error text emitted by the runtime) goes to the writer the
	// engine was constructed with, not into the return value.
	Evaluate(src string) (any, error)
}

// Factory constructs engines bound to an output writer.
type Factory interface {
	// New returns a fresh engine whose script output is written to out.
	// Construction may fail, e.g. when a binding cannot be installed.
	New(out io.Writer) (Engine, error)
}
