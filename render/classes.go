package render

import (
	"slices"
	"strings"

	"github.com/beevik/etree"
)

// HasClass reports whether element class attribute contains the token.
func HasClass(el *etree.Element, token string) bool {
	return slices.Contains(strings.Fields(el.SelectAttrValue("class", "")), token)
}

// AddClass appends token to element class attribute unless already present.
func AddClass(el *etree.Element, token string) {
	if len(token) == 0 || HasClass(el, token) {
		return
	}
	classes := strings.Fields(el.SelectAttrValue("class", ""))
	el.CreateAttr("class", strings.Join(append(classes, token), " "))
}

// RemoveClass drops token from element class attribute, attribute without
// tokens is removed.
func RemoveClass(el *etree.Element, token string) {
	classes := strings.Fields(el.SelectAttrValue("class", ""))
	if !slices.Contains(classes, token) {
		return
	}
	classes = slices.DeleteFunc(classes, func(c string) bool { return c == token })
	if len(classes) == 0 {
		el.RemoveAttr("class")
		return
	}
	el.CreateAttr("class", strings.Join(classes, " "))
}

// ToggleClass adds token when on is true and removes it otherwise.
func ToggleClass(el *etree.Element, token string, on bool) {
	if on {
		AddClass(el, token)
	} else {
		RemoveClass(el, token)
	}
}
