// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode controls how rich the CLI output is.
type Mode string

const (
	// ModeRich enables colors, icons and boxes.
	ModeRich Mode = "rich"

	// ModePlain keeps icons but drops colors and borders.
	ModePlain Mode = "plain"

	// ModeMachine outputs plain tab-separated text suitable for scripting.
	ModeMachine Mode = "machine"
)

// ParseMode converts a string to Mode. Unknown values yield ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "r":
		return ModeRich
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode picks a Mode for w.
//
// ETHGRAPH_OUTPUT overrides detection. Otherwise terminals get ModeRich and
// everything else (pipes, files, buffers) gets ModeMachine.
func DetectMode(w io.Writer) Mode {
	if env := os.Getenv("ETHGRAPH_OUTPUT"); env != "" {
		return ParseMode(env)
	}
	if IsTerminal(w) {
		return ModeRich
	}
	return ModeMachine
}

// IsTerminal reports whether w is a terminal, including Cygwin/MSYS ptys.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
