// Package taskqueue uses logiface for structured, backend-agnostic logging.
//
// A Manager logs through a *logiface.Logger[*stumpy.Event] by default,
// writing newline-delimited JSON to os.Stderr. Callers may supply their own
// *Logger (a logiface logger over stumpy events) via WithLogger, or silence
// logging entirely via WithLogger(NopLogger()).
package taskqueue

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type used throughout the package.
//
// It is a type alias rather than a new interface because logiface.Logger
// already provides the full leveled builder API (Debug/Info/Warning/Err/...);
// wrapping it would only hide that API behind indirection for no benefit.
type Logger = logiface.Logger[*stumpy.Event]

// defaultLogger writes structured JSON lines to os.Stderr at Info level.
func defaultLogger() *Logger {
	return stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)))
}

// NopLogger returns a logger with logging disabled, for callers that want
// zero logging overhead.
func NopLogger() *Logger {
	return stumpy.L.New(stumpy.L.WithLevel(logiface.LevelDisabled))
}
