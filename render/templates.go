package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/beevik/etree"
	sprig "github.com/go-task/slim-sprig/v3"

	"bibr/bib"
)

// templateValues is a struct that holds variables we make available for
// field template expansion
type templateValues struct {
	Context          string
	ID               string
	Type             string
	Title            string
	URL              string
	Authors          []string
	Editors          []string
	ContainerTitle   string
	CollectionNumber string
	Issue            string
	Issued           string
	Year             int
	Volume           string
	Page             string
	Publisher        string
	Publishing       []string
	Record           *bib.Record
}

func newTemplateValues(name string, rec *bib.Record) *templateValues {
	names := func(persons []bib.Person) []string {
		res := make([]string, 0, len(persons))
		for _, p := range persons {
			if n := p.Name(); len(n) > 0 {
				res = append(res, n)
			}
		}
		return res
	}
	return &templateValues{
		Context:          name,
		ID:               rec.ID,
		Type:             rec.Type,
		Title:            rec.Title,
		URL:              rec.URL,
		Authors:          names(rec.Author),
		Editors:          names(rec.Editor),
		ContainerTitle:   rec.ContainerTitle.String(),
		CollectionNumber: rec.CollectionNumber.String(),
		Issue:            rec.Issue.String(),
		Issued:           rec.Issued.String(),
		Year:             rec.Year(),
		Volume:           rec.Volume.String(),
		Page:             rec.Page.String(),
		Publisher:        rec.Publisher.String(),
		Publishing:       PublishingClauses(rec),
		Record:           rec,
	}
}

// TemplateField builds field renderer from text template. Template has
// access to record values and slim-sprig functions, "extra" function returns
// record field not known to the model. Blank result means absent field,
// otherwise text is put into span with class named after the field.
func TemplateField(name, text string) (FieldRenderer, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(name).Funcs(funcMap).Funcs(template.FuncMap{
		"extra": func(rec *bib.Record, field string) string { return rec.ExtraString(field) },
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("unable to parse template for field %s: %w", name, err)
	}
	class := Sanitize(name)

	return FieldRendererFunc(func(rec *bib.Record) (*etree.Element, error) {
		buf := new(bytes.Buffer)
		if err := tmpl.Execute(buf, newTemplateValues(name, rec)); err != nil {
			return nil, fmt.Errorf("unable to expand template for field %s of record %q: %w", name, rec.ID, err)
		}
		out := strings.TrimSpace(buf.String())
		if len(out) == 0 {
			return nil, nil
		}
		return span(class, out), nil
	}), nil
}

// TemplateRegistry builds renderers for all configured templates.
func TemplateRegistry(templates map[string]string) (Registry, error) {
	reg := make(Registry, len(templates))
	for name, text := range templates {
		fr, err := TemplateField(name, text)
		if err != nil {
			return nil, err
		}
		reg[name] = fr
	}
	return reg, nil
}
