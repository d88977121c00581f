package syms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/samber/lo"
	"github.com/vietanhduong/ksym/pkg/kernel"
)

// Resolver classifies kernel symbols referenced by name or address. It only
// reads from its Introspector and is safe for concurrent use.
type Resolver struct {
	kernel Introspector
}

func NewResolver(k Introspector) *Resolver {
	return &Resolver{kernel: k}
}

// DefaultResolver returns a Resolver backed by the process-wide kernel.
func DefaultResolver() (*Resolver, error) {
	k, err := kernel.Default()
	if err != nil {
		return nil, fmt.Errorf("inspect kernel: %w", err)
	}
	return NewResolver(k), nil
}

func (r *Resolver) event(name string) Symbol {
	return Symbol{kind: Event, name: name, kernel: r.kernel}
}

func (r *Resolver) function(name string) Symbol {
	return Symbol{kind: Func, name: name, kernel: r.kernel}
}

// FromName resolves an event (group:target) or function name.
//
// The tracing filesystem is authoritative when it can answer both for events
// and functions. Otherwise the symbol is only checked to exist in the symbol
// table and is classified from its name, see FromNameNoInspect.
func (r *Resolver) FromName(name string) (Symbol, error) {
	inspected := false

	switch r.kernel.IsEventTraceable(name) {
	case kernel.Yes:
		return r.event(name), nil
	case kernel.No:
		inspected = true
	}

	switch r.kernel.IsFunctionTraceable(name) {
	case kernel.Yes:
		return r.function(name), nil
	case kernel.Unavailable:
		inspected = false
	}

	if inspected {
		return Symbol{}, notTraceable(name, nil)
	}

	lookup := name
	if _, target, ok := strings.Cut(name, ":"); ok {
		lookup = tracepointPrefix + target
	}
	if _, err := r.kernel.SymbolAddr(lookup); err != nil {
		return Symbol{}, notTraceable(name, err)
	}

	sym := r.FromNameNoInspect(name)
	glog.V(4).Infof("Traceability of %s unknown, classified as %s from the symbol table", name, sym.Kind())
	return sym, nil
}

// FromNameNoInspect classifies name without querying the kernel: a
// group:target name or a __tracepoint_ symbol is an event, anything else a
// function. The result is not guaranteed to be traceable. Tracepoint
// symbols carry no group and are reported in the "unknown" group.
func (r *Resolver) FromNameNoInspect(name string) Symbol {
	if strings.Contains(name, ":") {
		return r.event(name)
	}
	if target, ok := strings.CutPrefix(name, tracepointPrefix); ok {
		return r.event(unknownGroup + ":" + target)
	}
	return r.function(name)
}

// FromAddr resolves the symbol starting exactly at addr. A tracepoint whose
// event can't be found is still returned, in the "unknown" group.
func (r *Resolver) FromAddr(addr uint64) (Symbol, error) {
	name, err := r.kernel.SymbolName(addr)
	if err != nil {
		if errors.Is(err, kernel.ErrNoSymbol) {
			return Symbol{}, notTraceable(fmt.Sprintf("0x%x", addr), err)
		}
		return Symbol{}, err
	}

	target, ok := strings.CutPrefix(name, tracepointPrefix)
	if !ok {
		return r.FromName(name)
	}
	event, ok := r.kernel.FindMatchingEvent(target)
	if !ok {
		glog.V(4).Infof("No event found for tracepoint %s at 0x%x", target, addr)
		return r.event(unknownGroup + ":" + target), nil
	}
	return r.FromName(event)
}

// MatchingFunctions resolves the traceable functions matching the glob
// pattern. Compiler generated variants (foo.isra.0, foo.part.1, ...) are not
// supported and are left out. Functions failing to resolve are skipped.
func (r *Resolver) MatchingFunctions(pattern string) ([]Symbol, error) {
	names, err := r.kernel.MatchingFunctions(pattern)
	if err != nil {
		return nil, err
	}
	names = lo.Filter(names, func(name string, _ int) bool {
		return !strings.Contains(name, ".")
	})
	return r.resolveAll(pattern, names)
}

// MatchingEvents resolves the events matching the glob pattern.
func (r *Resolver) MatchingEvents(pattern string) ([]Symbol, error) {
	names, err := r.kernel.MatchingEvents(pattern)
	if err != nil {
		return nil, err
	}
	return r.resolveAll(pattern, names)
}

func (r *Resolver) resolveAll(pattern string, names []string) ([]Symbol, error) {
	ret := lo.FilterMap(names, func(name string, _ int) (Symbol, bool) {
		sym, err := r.FromName(name)
		if err != nil {
			glog.V(5).Infof("Skipping %s matching %s: %v", name, pattern, err)
			return Symbol{}, false
		}
		return sym, true
	})
	if len(ret) == 0 {
		return nil, &NoMatchesError{Pattern: pattern}
	}
	return ret, nil
}
