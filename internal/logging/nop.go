package logging

import "github.com/escobera/brod/types"

// nopLogger discards all log output. Used as the default when no logger is
// injected.
type nopLogger struct{}

var _ types.Logger = (*nopLogger)(nil)

// NewNop returns a logger that discards everything.
func NewNop() types.Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Fatal(string, ...any) {}
