package syms

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/lo"
	"github.com/vietanhduong/ksym/pkg/kernel"
)

// fakeKernel is an in-memory Introspector. A nil events or functions list
// makes the matching traceability check unavailable.
type fakeKernel struct {
	events    []string
	functions []string
	symbols   map[string]uint64
	// keyed by typedef name
	layouts map[string][]string
	btfErr  error
	// returned by SymbolName instead of a lookup
	nameErr error
	// appended to every MatchingFunctions result
	extraMatches []string

	config  map[string]string
	modules map[string]kernel.Answer
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		events: []string{
			"skb:kfree_skb",
			"skb:consume_skb",
			"net:netif_receive_skb",
		},
		functions: []string{
			"kfree_skb_reason",
			"consume_skb",
			"nf_conntrack_in",
			"nf_ct_get_tuple.isra.0",
			"nf_nat_ipv4_fn",
		},
		symbols: map[string]uint64{
			"kfree_skb_reason":               0xffffffff81a1ddf0,
			"consume_skb":                    0xffffffff81a1df00,
			"skb_release_data":               0xffffffff81a1de80,
			"nf_conntrack_in":                0xffffffffc0a01000,
			"nf_ct_get_tuple.isra.0":         0xffffffffc0a01100,
			"nf_nat_ipv4_fn":                 0xffffffffc0a02000,
			"__tracepoint_kfree_skb":         0xffffffff82be5480,
			"__tracepoint_consume_skb":       0xffffffff82be54c0,
			"__tracepoint_netif_receive_skb": 0xffffffff82be5500,
			"__tracepoint_openvswitch_probe": 0xffffffff82be5540,
		},
		layouts: map[string][]string{
			"kfree_skb_reason":    {"struct sk_buff *", "enum skb_drop_reason"},
			"btf_trace_kfree_skb": {"struct sk_buff *", "void *", "enum skb_drop_reason"},
		},
	}
}

// withoutTracefs drops both traceability lists.
func (f *fakeKernel) withoutTracefs() *fakeKernel {
	f.events, f.functions = nil, nil
	return f
}

func (f *fakeKernel) IsEventTraceable(name string) kernel.Answer {
	if f.events == nil {
		return kernel.Unavailable
	}
	return kernel.AnswerOf(lo.Contains(f.events, name))
}

func (f *fakeKernel) IsFunctionTraceable(name string) kernel.Answer {
	if f.functions == nil {
		return kernel.Unavailable
	}
	return kernel.AnswerOf(lo.Contains(f.functions, name))
}

func (f *fakeKernel) SymbolAddr(name string) (uint64, error) {
	if addr, ok := f.symbols[name]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("%s: %w", name, kernel.ErrNoSymbol)
}

func (f *fakeKernel) SymbolName(addr uint64) (string, error) {
	if f.nameErr != nil {
		return "", f.nameErr
	}
	for name, a := range f.symbols {
		if a == addr {
			return name, nil
		}
	}
	return "", fmt.Errorf("0x%x: %w", addr, kernel.ErrNoSymbol)
}

func (f *fakeKernel) FindMatchingEvent(target string) (string, bool) {
	events := append([]string(nil), f.events...)
	sort.Strings(events)
	return lo.Find(events, func(event string) bool {
		_, t, _ := strings.Cut(event, ":")
		return t == target
	})
}

func (f *fakeKernel) MatchingFunctions(pattern string) ([]string, error) {
	names := f.functions
	if names == nil {
		// text symbols only, as the symbol table fallback does
		names = lo.Filter(lo.Keys(f.symbols), func(name string, _ int) bool {
			return !strings.HasPrefix(name, tracepointPrefix)
		})
		sort.Strings(names)
	}
	ret, err := match(names, pattern)
	if err != nil {
		return nil, err
	}
	return append(ret, f.extraMatches...), nil
}

func (f *fakeKernel) MatchingEvents(pattern string) ([]string, error) {
	if f.events == nil {
		return nil, kernel.ErrTracefsUnavailable
	}
	return match(f.events, pattern)
}

func match(names []string, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return lo.Filter(names, func(name string, _ int) bool { return g.Match(name) }), nil
}

func (f *fakeKernel) layout(sym kernel.Typed) ([]string, error) {
	if f.btfErr != nil {
		return nil, f.btfErr
	}
	params, ok := f.layouts[sym.TypedefName()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sym.TypedefName(), kernel.ErrNoBTFType)
	}
	return params, nil
}

func (f *fakeKernel) FunctionNargs(sym kernel.Typed) (uint32, error) {
	params, err := f.layout(sym)
	if err != nil {
		return 0, err
	}
	return uint32(len(params)), nil
}

func (f *fakeKernel) ParameterOffset(sym kernel.Typed, typ string) (uint32, bool, error) {
	params, err := f.layout(sym)
	if err != nil {
		return 0, false, err
	}
	i := lo.IndexOf(params, typ)
	if i < 0 {
		return 0, false, nil
	}
	return uint32(i), true, nil
}

func (f *fakeKernel) ConfigOption(key string) (string, bool, error) {
	if f.config == nil {
		return "", false, kernel.ErrNoKernelConfig
	}
	v, ok := f.config[key]
	return v, ok, nil
}

func (f *fakeKernel) ModuleLoaded(name string) kernel.Answer {
	if a, ok := f.modules[name]; ok {
		return a
	}
	return kernel.Unavailable
}

var _ Introspector = (*fakeKernel)(nil)
