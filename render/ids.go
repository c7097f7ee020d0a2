package render

import (
	"errors"
	"regexp"
)

// ErrMissingContainerIdentifier is returned when render target has no
// identifier to derive entry identifiers from.
var ErrMissingContainerIdentifier = errors.New("render container has no identifier")

// leading run of non letters must go first: alternation is leftmost-first and
// replacing the run with a single "_" keeps Sanitize idempotent
var unsafeRe = regexp.MustCompile(`(?i)^[^a-z]+|[^a-z0-9\-_]`)

// Sanitize turns arbitrary string into a token usable as element identifier
// or class name. Leading run of non letter characters becomes single "_", any
// other character outside [A-Za-z0-9_-] becomes "_".
func Sanitize(s string) string {
	return unsafeRe.ReplaceAllString(s, "_")
}

// IDGenerator maps record identifier to element identifier.
type IDGenerator func(recordID string) string

// IDGeneratorFactory produces generator scoped to container identifier.
type IDGeneratorFactory func(containerID string) (IDGenerator, error)

// NewIDGenerator produces "<containerID>-<Sanitize(recordID)>" identifiers.
func NewIDGenerator(containerID string) (IDGenerator, error) {
	if len(containerID) == 0 {
		return nil, ErrMissingContainerIdentifier
	}
	return func(recordID string) string {
		return containerID + "-" + Sanitize(recordID)
	}, nil
}
