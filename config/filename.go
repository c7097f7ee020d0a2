package config

import (
	"strings"
	"unicode/utf8"
)

// maxFileNameLength keeps generated names within limits of common file systems.
const maxFileNameLength = 200

// CleanFileName removes characters not allowed in file names, leading dots
// and trims result to reasonable length.
func CleanFileName(in string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		if forbiddenInName(sym) {
			return -1
		}
		return sym
	}, in), ". ")
	for len(out) > maxFileNameLength {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}
	out = strings.TrimRight(out, " ")
	if len(out) == 0 {
		out = "_bad_file_name_"
	}
	return out
}
