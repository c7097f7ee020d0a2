package bib

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingIdentifier is returned for records without "id".
var ErrMissingIdentifier = errors.New("record has no identifier")

// known lists JSON names mapped to Record fields, everything else goes to Extra.
// Field name matching of encoding/json is case insensitive, so "url" fills URL.
var known = map[string]bool{
	"id": true, "type": true, "title": true, "URL": true, "url": true,
	"author": true, "editor": true, "container-title": true,
	"collection-number": true, "issue": true, "issued": true,
	"volume": true, "page": true, "publisher": true,
}

// ParseRecords decodes BibJSON array. Order of records is preserved.
func ParseRecords(data []byte) ([]Record, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("unable to decode BibJSON array: %w", err)
	}

	records := make([]Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := parseRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to decode record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(raw json.RawMessage) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rec, err
	}

	for name, value := range fields {
		if known[name] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[name] = value
	}
	return rec, nil
}
