package metadata

import (
	"fmt"
	"log/slog"
)

// Diagnostics collects recoverable warnings raised while constructing,
// normalizing, and merging metadata. It replaces any process-wide warning
// sink: callers thread one collector through the options they care about.
//
// A nil *Diagnostics is usable; warnings are then discarded.
type Diagnostics struct {
	logger   *slog.Logger
	warnings []string
}

// NewDiagnostics creates a collector. When logger is non-nil each warning
// is also logged at warn level.
func NewDiagnostics(logger *slog.Logger) *Diagnostics {
	return &Diagnostics{logger: logger}
}

// Warnf records a formatted warning.
func (d *Diagnostics) Warnf(format string, args ...any) {
	if d == nil {
		return
	}

	msg := fmt.Sprintf(format, args...)
	d.warnings = append(d.warnings, msg)

	if d.logger != nil {
		d.logger.Warn(msg)
	}
}

// Warnings returns all recorded warnings in order.
func (d *Diagnostics) Warnings() []string {
	if d == nil {
		return nil
	}

	return d.warnings
}

// Empty reports whether no warnings were recorded.
func (d *Diagnostics) Empty() bool {
	return d == nil || len(d.warnings) == 0
}
