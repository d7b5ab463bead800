package feedsync

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned when a second cycle is requested for a feed
// that already has one running.
var ErrSyncInProgress = errors.New("sync already in progress for feed")

// Kind classifies a cycle failure so callers can build a status message.
type Kind int

const (
	KindFetch Kind = iota + 1
	KindParse
	KindStore
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindParse:
		return "parse"
	case KindStore:
		return "store"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// CycleError is the only error type the orchestrator returns for a failed
// cycle; it wraps the underlying cause with a taxonomy kind and the
// operation that failed.
type CycleError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

func cycleErr(kind Kind, op string, err error) *CycleError {
	return &CycleError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the taxonomy kind of err, or 0 if it is not a CycleError.
func KindOf(err error) Kind {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
