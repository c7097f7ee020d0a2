package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// styleSummary is what we need to know about stylesheet before embedding it.
type styleSummary struct {
	Rules int
	// selectors referencing classes of interest
	Classes map[string]bool
}

// inspectStylesheet parses stylesheet and reports which of the classes are
// used by its selectors.
func inspectStylesheet(data []byte, classes ...string) (*styleSummary, error) {
	sum := &styleSummary{Classes: make(map[string]bool, len(classes))}
	for _, c := range classes {
		sum.Classes[c] = false
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("unable to parse stylesheet: %w", err)
			}
			return sum, nil
		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			// grouped selectors come as qualified rules before the ruleset
			if gt == css.BeginRulesetGrammar {
				sum.Rules++
			}
			for _, sel := range selectors(data, parser.Values()) {
				for c := range sum.Classes {
					if selectorHasClass(sel, c) {
						sum.Classes[c] = true
					}
				}
			}
		}
	}
}

func selectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var res []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}

func selectorHasClass(sel, class string) bool {
	token := "." + class
	for i := strings.Index(sel, token); i >= 0; {
		end := i + len(token)
		if end == len(sel) || !isNameChar(sel[end]) {
			return true
		}
		next := strings.Index(sel[end:], token)
		if next < 0 {
			break
		}
		i = end + next
	}
	return false
}

func isNameChar(c byte) bool {
	return c == '-' || c == '_' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
