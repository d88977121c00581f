package syms

import (
	"strings"
)

const (
	tracepointPrefix = "__tracepoint_"
	btfTracePrefix   = "btf_trace_"
	unknownGroup     = "unknown"
)

type Kind uint8

const (
	Func Kind = iota
	Event
)

func (k Kind) String() string {
	switch k {
	case Func:
		return "func"
	case Event:
		return "event"
	}
	return "invalid"
}

// Symbol is a traceable kernel symbol: a function, or an event (tracepoint)
// named group:target. The zero value is not a valid Symbol; use a Resolver.
//
// Every form of the name is derived on demand:
//
//	             function          event
//	Name         kfree_skb_reason  skb:kfree_skb
//	AttachName   kfree_skb_reason  kfree_skb
//	AddrName     kfree_skb_reason  __tracepoint_kfree_skb
//	TypedefName  kfree_skb_reason  btf_trace_kfree_skb
type Symbol struct {
	kind   Kind
	name   string
	kernel Introspector
}

func (s Symbol) Kind() Kind    { return s.kind }
func (s Symbol) IsEvent() bool { return s.kind == Event }

// Name is the display name.
func (s Symbol) Name() string { return s.name }

func (s Symbol) String() string { return s.name }

// Group is the event group, empty for functions.
func (s Symbol) Group() string {
	if s.kind != Event {
		return ""
	}
	group, _, _ := strings.Cut(s.name, ":")
	return group
}

// AttachName is the target used to attach a probe.
func (s Symbol) AttachName() string {
	if s.kind != Event {
		return s.name
	}
	if _, target, ok := strings.Cut(s.name, ":"); ok {
		return target
	}
	return s.name
}

// AddrName is the name of the symbol in the kernel symbol table.
func (s Symbol) AddrName() string {
	if s.kind != Event {
		return s.name
	}
	return tracepointPrefix + s.AttachName()
}

// TypedefName is the name of the BTF type describing the symbol arguments.
func (s Symbol) TypedefName() string {
	if s.kind != Event {
		return s.name
	}
	return btfTracePrefix + s.AttachName()
}

func (s Symbol) Addr() (uint64, error) {
	return s.kernel.SymbolAddr(s.AddrName())
}

func (s Symbol) Nargs() (uint32, error) {
	return s.kernel.FunctionNargs(s)
}

// ParameterOffset returns the index of the first parameter of type typ, e.g.
// "struct sk_buff *". The boolean is false when no parameter has that type.
func (s Symbol) ParameterOffset(typ string) (uint32, bool, error) {
	return s.kernel.ParameterOffset(s, typ)
}
