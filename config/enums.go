package config

import (
	"fmt"
	"strings"
)

// TemplateFieldName names configuration fields which hold text templates.
type TemplateFieldName string

// Policy for records sharing the same identifier.
// ENUM(reject, lastWins)
type DuplicatePolicy int

const (
	DuplicatePolicyReject DuplicatePolicy = iota
	DuplicatePolicyLastWins
)

var duplicatePolicyNames = []string{"reject", "lastWins"}

func (x DuplicatePolicy) String() string {
	if x >= 0 && int(x) < len(duplicatePolicyNames) {
		return duplicatePolicyNames[x]
	}
	return fmt.Sprintf("DuplicatePolicy(%d)", x)
}

func (x DuplicatePolicy) IsValid() bool {
	return x >= 0 && int(x) < len(duplicatePolicyNames)
}

// DuplicatePolicyNames returns list of possible string values.
func DuplicatePolicyNames() []string {
	return append([]string(nil), duplicatePolicyNames...)
}

// ParseDuplicatePolicy attempts to convert a string to a DuplicatePolicy, case insensitive.
func ParseDuplicatePolicy(name string) (DuplicatePolicy, error) {
	for i, n := range duplicatePolicyNames {
		if strings.EqualFold(n, name) {
			return DuplicatePolicy(i), nil
		}
	}
	return DuplicatePolicy(0), fmt.Errorf("%s is not a valid DuplicatePolicy, try [%s]", name, strings.Join(duplicatePolicyNames, ", "))
}

func (x DuplicatePolicy) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

func (x *DuplicatePolicy) UnmarshalText(text []byte) error {
	v, err := ParseDuplicatePolicy(string(text))
	if err != nil {
		return err
	}
	*x = v
	return nil
}

// Key used to order rendered entries.
// ENUM(none, id, title, author, year)
type SortKey int

const (
	SortKeyNone SortKey = iota
	SortKeyId
	SortKeyTitle
	SortKeyAuthor
	SortKeyYear
)

var sortKeyNames = []string{"none", "id", "title", "author", "year"}

func (x SortKey) String() string {
	if x >= 0 && int(x) < len(sortKeyNames) {
		return sortKeyNames[x]
	}
	return fmt.Sprintf("SortKey(%d)", x)
}

func (x SortKey) IsValid() bool {
	return x >= 0 && int(x) < len(sortKeyNames)
}

// SortKeyNames returns list of possible string values.
func SortKeyNames() []string {
	return append([]string(nil), sortKeyNames...)
}

// ParseSortKey attempts to convert a string to a SortKey, case insensitive.
func ParseSortKey(name string) (SortKey, error) {
	for i, n := range sortKeyNames {
		if strings.EqualFold(n, name) {
			return SortKey(i), nil
		}
	}
	return SortKey(0), fmt.Errorf("%s is not a valid SortKey, try [%s]", name, strings.Join(sortKeyNames, ", "))
}

func (x SortKey) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

func (x *SortKey) UnmarshalText(text []byte) error {
	v, err := ParseSortKey(string(text))
	if err != nil {
		return err
	}
	*x = v
	return nil
}
