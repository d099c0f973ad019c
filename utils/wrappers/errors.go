// Package wrappers holds small shared utilities: an error collector that
// aggregates independent failures without aborting on the first one. No
// other package in this module imports it.
package wrappers

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Errs collects zero or more errors and can report them as one.
type Errs struct {
	mu   sync.RWMutex
	errs []error
}

// Add appends err, if non-nil.
func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

// Errored reports whether any error has been added.
func (e *Errs) Errored() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.errs) > 0
}

// Err returns nil, the single collected error, or an aggregate error.
func (e *Errs) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch len(e.errs) {
	case 0:
		return nil
	case 1:
		return e.errs[0]
	default:
		return errors.New(e.string())
	}
}

func (e *Errs) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.string()
}

func (e *Errs) string() string {
	if len(e.errs) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error", len(e.errs))
	if len(e.errs) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(" occurred:")
	for _, err := range e.errs {
		sb.WriteString("\n\t* ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Len returns the number of collected errors.
func (e *Errs) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.errs)
}
