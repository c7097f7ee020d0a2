// Package bibtex finds stanzas of concatenated BibTeX text by boundary search.
// It never tokenizes BibTeX grammar: stanza is whatever lies between its
// opening "@type{key" and the next stanza opening (or end of text).
package bibtex

import (
	"fmt"
	"regexp"
	"strings"
)

// SourceDesyncError is returned when record identifier has no matching
// stanza in BibTeX text.
type SourceDesyncError struct {
	ID string
}

func (e *SourceDesyncError) Error() string {
	return fmt.Sprintf("no BibTeX stanza for record %q, sources are out of sync", e.ID)
}

const (
	// "@type{" followed by key, key ends with optional whitespace and "," or "}"
	openingFmt = `@[^@{]*\{\s*%s\s*[,}]`
	// next stanza opening
	nextOpening = `@[A-Za-z]+\s*\{`
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	boundaryRe   = regexp.MustCompile(`\}\s*@`)
	keysRe       = regexp.MustCompile(`@([A-Za-z]+)\s*\{\s*([^,\s{}]+)\s*[,}]`)
)

func openingPattern(id string) string {
	return fmt.Sprintf(openingFmt, regexp.QuoteMeta(id))
}

// Locate returns stanza for the key with internal whitespace collapsed and
// closing brace guaranteed.
func Locate(text, id string) (string, bool) {
	if len(id) == 0 {
		return "", false
	}
	re, err := regexp.Compile(`(` + openingPattern(id) + `[\s\S]*?)(?:` + nextOpening + `|$)`)
	if err != nil {
		// quoted identifier always compiles
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	stanza := whitespaceRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
	if !strings.HasSuffix(stanza, "}") {
		// truncated at the end of text
		stanza += "}"
	}
	return stanza, true
}

// Verify reports whether stanza opening for the key is present anywhere in text.
func Verify(text, id string) bool {
	if len(id) == 0 {
		return false
	}
	re, err := regexp.Compile(openingPattern(id))
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// Keys returns keys of all stanzas in text order. Special entries (@comment,
// @preamble, @string) carry no keys and are skipped.
func Keys(text string) []string {
	var keys []string
	for _, m := range keysRe.FindAllStringSubmatch(text, -1) {
		switch strings.ToLower(m[1]) {
		case "comment", "preamble", "string":
			continue
		}
		keys = append(keys, m[2])
	}
	return keys
}

// Normalize collapses whitespace runs into single spaces and puts every
// stanza opening on its own line. This is a preprocessing policy for
// irregularly formatted input, not a BibTeX grammar rule.
func Normalize(text string) string {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	return boundaryRe.ReplaceAllString(text, "}\n@")
}
