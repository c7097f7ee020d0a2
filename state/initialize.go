package state

import (
	_ "embed"
	"time"

	"github.com/google/uuid"
)

//go:embed default.css
var defaultStyle []byte

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		RunID:        uuid.New(),
		DefaultStyle: defaultStyle,
		start:        time.Now(),
	}
}
