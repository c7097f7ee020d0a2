//go:build !windows

package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

const forbiddenRunes = string(os.PathSeparator) + string(os.PathListSeparator)

func forbiddenInName(sym rune) bool {
	return sym == 0 || strings.ContainsRune(forbiddenRunes, sym)
}

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
