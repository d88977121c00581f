package syms

import "github.com/vietanhduong/ksym/pkg/kernel"

// Introspector is the view of the running kernel the resolver works with.
// Traceability checks answer kernel.Unavailable when the host does not
// expose the information, which is not the same as kernel.No.
type Introspector interface {
	kernel.FeatureSource

	IsEventTraceable(name string) kernel.Answer
	IsFunctionTraceable(name string) kernel.Answer

	SymbolAddr(name string) (uint64, error)
	SymbolName(addr uint64) (string, error)

	// FindMatchingEvent returns the group:target event for target.
	FindMatchingEvent(target string) (string, bool)
	MatchingFunctions(pattern string) ([]string, error)
	MatchingEvents(pattern string) ([]string, error)

	FunctionNargs(sym kernel.Typed) (uint32, error)
	ParameterOffset(sym kernel.Typed, typ string) (uint32, bool, error)
}

var _ Introspector = (*kernel.Kernel)(nil)
