package fetch

import "fmt"

// ErrorKind separates failures worth retrying later (network, HTTP status)
// from responses that could not be parsed as a feed at all.
type ErrorKind int

const (
	KindTransient ErrorKind = iota + 1
	KindMalformed
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
