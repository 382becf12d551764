// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

// Package logging wraps a charmbracelet logger shared by the CLI and the
// store. The package-level helpers write to L.
package logging

import (
	"fmt"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. Callers should use the helper functions
// below.
var L = clog.NewWithOptions(os.Stderr, clog.Options{ReportTimestamp: true})

// Init sets the level of L from a name such as "debug" or "warn". An empty
// name leaves the level at info.
func Init(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		L.SetLevel(clog.InfoLevel)
		return nil
	}
	lvl, err := clog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	L.SetLevel(lvl)
	// The store logs through the default charm logger.
	clog.SetLevel(lvl)
	return nil
}

// SetDebug switches L to debug level, or back to info.
func SetDebug(enabled bool) {
	lvl := clog.InfoLevel
	if enabled {
		lvl = clog.DebugLevel
	}
	L.SetLevel(lvl)
	clog.SetLevel(lvl)
}

// Debugf logs a debug-level formatted message.
func Debugf(format string, v ...any) {
	L.Debug(fmt.Sprintf(format, v...))
}

// Infof logs an info-level formatted message.
func Infof(format string, v ...any) {
	L.Info(fmt.Sprintf(format, v...))
}

// Warnf logs a warning-level formatted message.
func Warnf(format string, v ...any) {
	L.Warn(fmt.Sprintf(format, v...))
}

// Errorf logs an error-level formatted message.
func Errorf(format string, v ...any) {
	L.Error(fmt.Sprintf(format, v...))
}
