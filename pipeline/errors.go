package pipeline

import (
	"errors"
	"fmt"
)

// Source names used in SourceUnavailableError.
const (
	SourceBibJSON = "bibjson"
	SourceBibTeX  = "bibtex"
)

var (
	// ErrNotReady is returned by operations on rendered entries before
	// successful load.
	ErrNotReady = errors.New("pipeline is not ready")
	// ErrLoadInProgress is returned by Load called while another load has not
	// finished yet.
	ErrLoadInProgress = errors.New("load is already in progress")
)

// SourceUnavailableError reports failure to retrieve or decode one of the
// sources. Load attempt is terminal, nothing is rendered.
type SourceUnavailableError struct {
	Source   string
	Location string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s source %q is unavailable: %v", e.Source, e.Location, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}
