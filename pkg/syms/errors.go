package syms

import (
	"errors"
	"fmt"
)

var (
	ErrNotTraceable = errors.New("symbol does not exist or isn't traceable")
	ErrNoMatches    = errors.New("no traceable symbol matches")
)

// NotTraceableError reports an input that does not resolve to a traceable
// symbol. Err, if set, is the introspection failure that led to it.
type NotTraceableError struct {
	Input string
	Err   error
}

func (e *NotTraceableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("symbol %s does not exist or isn't traceable: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("symbol %s does not exist or isn't traceable", e.Input)
}

func (e *NotTraceableError) Is(target error) bool { return target == ErrNotTraceable }

func (e *NotTraceableError) Unwrap() error { return e.Err }

type NoMatchesError struct {
	Pattern string
}

func (e *NoMatchesError) Error() string {
	return fmt.Sprintf("could not get traceable symbols matching '%s'", e.Pattern)
}

func (e *NoMatchesError) Is(target error) bool { return target == ErrNoMatches }

func notTraceable(input string, err error) error {
	return &NotTraceableError{Input: input, Err: err}
}
