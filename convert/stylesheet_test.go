package convert

import (
	"testing"

	"bibr/state"
)

func TestInspectStylesheet(t *testing.T) {
	tests := []struct {
		name   string
		css    string
		rules  int
		hidden bool
	}{
		{"empty", "", 0, false},
		{"simple", ".hidden { display: none; }", 1, true},
		{"grouped", "p { margin: 0 }\ndiv.publication.hidden, span { display: none }", 2, true},
		{"prefix only", ".hidden-entry { color: red }", 1, false},
		{"media block", "@media print { .hidden { display: none } }", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := inspectStylesheet([]byte(tt.css), "hidden")
			if err != nil {
				t.Fatalf("inspectStylesheet() error = %v", err)
			}
			if sum.Rules != tt.rules {
				t.Errorf("rules = %d, want %d", sum.Rules, tt.rules)
			}
			if sum.Classes["hidden"] != tt.hidden {
				t.Errorf("hidden class used = %v, want %v", sum.Classes["hidden"], tt.hidden)
			}
		})
	}
}

func TestInspectStylesheet_Default(t *testing.T) {
	env := state.EnvFromContext(state.ContextWithEnv(t.Context()))
	sum, err := inspectStylesheet(env.DefaultStyle, "hidden", "publication", "bibliography")
	if err != nil {
		t.Fatalf("inspectStylesheet() error = %v", err)
	}
	for class, used := range sum.Classes {
		if !used {
			t.Errorf("default stylesheet has no rule for %q", class)
		}
	}
}

func TestSelectorHasClass(t *testing.T) {
	tests := []struct {
		sel  string
		want bool
	}{
		{".hidden", true},
		{"div.hidden", true},
		{".hidden:hover", true},
		{".hiddenx", false},
		{".hiddenx.hidden", true},
		{"hidden", false},
	}
	for _, tt := range tests {
		if got := selectorHasClass(tt.sel, "hidden"); got != tt.want {
			t.Errorf("selectorHasClass(%q) = %v, want %v", tt.sel, got, tt.want)
		}
	}
}
