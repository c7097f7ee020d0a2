package bibtex

// Source is BibTeX text loaded once and normalized for repeatable lookups.
type Source struct {
	text string
}

func NewSource(raw string) *Source {
	return &Source{text: Normalize(raw)}
}

// Text returns normalized text.
func (s *Source) Text() string {
	if s == nil {
		return ""
	}
	return s.text
}

func (s *Source) Locate(id string) (string, bool) {
	if s == nil {
		return "", false
	}
	return Locate(s.text, id)
}

func (s *Source) Verify(id string) bool {
	if s == nil {
		return false
	}
	return Verify(s.text, id)
}

// Check returns SourceDesyncError when stanza for the key is missing.
func (s *Source) Check(id string) error {
	if !s.Verify(id) {
		return &SourceDesyncError{ID: id}
	}
	return nil
}

func (s *Source) Keys() []string {
	if s == nil {
		return nil
	}
	return Keys(s.text)
}
