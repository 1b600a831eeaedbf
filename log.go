package modred

import (
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger returns a logger writing to w at the given level
// (debug, info, warn, error).
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		var err error
		lvl, err = log.ParseLevel(level)
		if err != nil {
			return nil, err
		}
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "modred",
		ReportTimestamp: true,
	}), nil
}

// Logger returns l, or a logger discarding everything when l is nil.
func Logger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}
