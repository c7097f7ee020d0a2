package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/ianaindex"
)

// decodeText converts BibTeX source to UTF-8. When name is empty encoding is
// guessed from BOM and content, otherwise name is looked up in IANA registry.
func decodeText(data []byte, name string) (string, string, error) {
	if len(name) == 0 {
		enc, detected, _ := charset.DetermineEncoding(data, "text/plain")
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", detected, err
		}
		return strings.TrimPrefix(string(out), "\ufeff"), detected, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return "", name, err
	}
	if enc == nil {
		return "", name, fmt.Errorf("encoding %q is not supported", name)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", name, err
	}
	return strings.TrimPrefix(string(out), "\ufeff"), name, nil
}
