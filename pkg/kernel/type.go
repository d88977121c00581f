package kernel

import "errors"

var (
	ErrNoSymbol = errors.New("symbol not found")

	// ErrSymbolPermissions is returned when kallsyms only exposes zero
	// addresses, i.e. kptr_restrict is set or CAP_SYSLOG is missing.
	ErrSymbolPermissions = errors.New("unable to read kallsyms addresses - check capabilities")

	ErrBTFUnavailable     = errors.New("kernel BTF is not available")
	ErrNoBTFType          = errors.New("BTF type not found")
	ErrNoKernelConfig     = errors.New("kernel config is not available")
	ErrTracefsUnavailable = errors.New("tracefs is not available")
)

// Answer is the outcome of a capability probe. Unavailable means the host
// could not answer the question at all, which is different from No.
type Answer uint8

const (
	Unavailable Answer = iota
	No
	Yes
)

func AnswerOf(b bool) Answer {
	if b {
		return Yes
	}
	return No
}

func (a Answer) String() string {
	switch a {
	case Yes:
		return "yes"
	case No:
		return "no"
	}
	return "unavailable"
}

// Typed is implemented by anything having BTF type information: a traceable
// function or a tracepoint.
type Typed interface {
	// TypedefName is the BTF name describing the parameters.
	TypedefName() string
	// IsEvent tells if TypedefName refers to a tracepoint typedef, whose
	// first parameter is the probe private data.
	IsEvent() bool
}
