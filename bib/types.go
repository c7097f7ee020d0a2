// Package bib holds bibliographic records loaded from BibJSON (CSL-JSON)
// sources and the in-memory store used by rendering.
package bib

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Text is a bibliographic value which CSL-JSON producers emit either as a
// string or as a number ("volume": 12 and "volume": "12" are both common).
// Empty Text means the field is absent.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Present reports whether value was supplied.
func (t Text) Present() bool {
	return len(t) > 0
}

// Date mirrors CSL-JSON date object. Only date parts are used for rendering,
// literal and raw forms are kept as a fallback.
type Date struct {
	DateParts [][]Text `json:"date-parts,omitempty"`
	Literal   string   `json:"literal,omitempty"`
	Raw       string   `json:"raw,omitempty"`
}

// UnmarshalJSON accepts CSL-JSON date object as well as plain string which is
// kept as raw date.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &d.Raw)
	}
	type plain Date
	return json.Unmarshal(data, (*plain)(d))
}

// Present reports whether date carries anything renderable.
func (d *Date) Present() bool {
	return d != nil && len(d.String()) > 0
}

// Parts joins parts of a single date with space and multiple dates (ranges)
// with comma. Empty when the date has no date parts.
func (d *Date) Parts() string {
	if d == nil {
		return ""
	}
	dates := make([]string, 0, len(d.DateParts))
	for _, parts := range d.DateParts {
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p.Present() {
				values = append(values, p.String())
			}
		}
		if len(values) > 0 {
			dates = append(dates, strings.Join(values, " "))
		}
	}
	return strings.Join(dates, ",")
}

// String returns date parts, falls back to literal and raw forms.
func (d *Date) String() string {
	if d == nil {
		return ""
	}
	if s := d.Parts(); len(s) > 0 {
		return s
	}
	if len(d.Literal) > 0 {
		return d.Literal
	}
	return d.Raw
}

// Year returns the first part of the first date or 0 when not available.
func (d *Date) Year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	y, err := strconv.Atoi(d.DateParts[0][0].String())
	if err != nil {
		return 0
	}
	return y
}

// Person is a CSL-JSON name variable.
type Person struct {
	Given               string `json:"given,omitempty"`
	Family              string `json:"family,omitempty"`
	DroppingParticle    string `json:"dropping-particle,omitempty"`
	NonDroppingParticle string `json:"non-dropping-particle,omitempty"`
	Suffix              string `json:"suffix,omitempty"`
	Literal             string `json:"literal,omitempty"`
}

// Name formats person for display. Given and family names take precedence
// over literal, person without either contributes nothing.
func (p Person) Name() string {
	given, family := strings.TrimSpace(p.Given), strings.TrimSpace(p.Family)
	if len(given) > 0 && len(family) > 0 {
		var b strings.Builder
		b.WriteString(given)
		if particle := strings.TrimSpace(p.DroppingParticle); len(particle) > 0 {
			b.WriteString(" ")
			b.WriteString(particle)
		}
		b.WriteString(" ")
		b.WriteString(family)
		return b.String()
	}
	return strings.TrimSpace(p.Literal)
}

// SortName is family name (or literal) used for ordering.
func (p Person) SortName() string {
	if family := strings.TrimSpace(p.Family); len(family) > 0 {
		return family
	}
	return strings.TrimSpace(p.Literal)
}

// JoinNames formats persons and joins non-empty names with ", ".
func JoinNames(persons []Person) string {
	names := make([]string, 0, len(persons))
	for _, p := range persons {
		if n := p.Name(); len(n) > 0 {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

// Record is a single bibliographic entry.
type Record struct {
	ID               string   `json:"id"`
	Type             string   `json:"type,omitempty"`
	Title            string   `json:"title,omitempty"`
	URL              string   `json:"URL,omitempty"`
	Author           []Person `json:"author,omitempty"`
	Editor           []Person `json:"editor,omitempty"`
	ContainerTitle   Text     `json:"container-title,omitempty"`
	CollectionNumber Text     `json:"collection-number,omitempty"`
	Issue            Text     `json:"issue,omitempty"`
	Issued           *Date    `json:"issued,omitempty"`
	Volume           Text     `json:"volume,omitempty"`
	Page             Text     `json:"page,omitempty"`
	Publisher        Text     `json:"publisher,omitempty"`

	// Extra keeps fields not mapped above, template renderers may use them.
	Extra map[string]json.RawMessage `json:"-"`
}

// Year of issue or 0.
func (r *Record) Year() int {
	return r.Issued.Year()
}

// ExtraString returns unmapped field as string if it is a JSON string or number.
func (r *Record) ExtraString(name string) string {
	raw, ok := r.Extra[name]
	if !ok {
		return ""
	}
	var t Text
	if err := json.Unmarshal(raw, &t); err != nil {
		return ""
	}
	return t.String()
}
