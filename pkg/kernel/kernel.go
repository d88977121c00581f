package kernel

import (
	"fmt"
	"sync"

	"github.com/gobwas/glob"
	"github.com/golang/glog"
	"github.com/samber/lo"
	"github.com/vietanhduong/ksym/pkg/proc"
	"golang.org/x/exp/slices"
)

// Options overrides where the kernel state is read from. The zero value
// reads the host, honoring the pkg/proc path flags.
type Options struct {
	KallsymsPath string
	TracefsRoots []string
	// Kernel config candidates, in order. Files ending in .gz are
	// decompressed.
	KconfigPaths []string
	ModulesPath  string
	// ModuleBTF loads the split BTF of loaded modules in addition to vmlinux.
	ModuleBTF bool
	// DisableBTF skips loading BTF altogether; layout queries then fail with
	// ErrBTFUnavailable.
	DisableBTF      bool
	LayoutCacheSize uint32
}

func (o *Options) withDefaults() *Options {
	ret := Options{}
	if o != nil {
		ret = *o
	}
	if ret.KallsymsPath == "" {
		ret.KallsymsPath = proc.HostProcPath("kallsyms")
	}
	if len(ret.TracefsRoots) == 0 {
		ret.TracefsRoots = []string{
			proc.HostSysPath("kernel", "tracing"),
			proc.HostSysPath("kernel", "debug", "tracing"),
		}
	}
	if len(ret.KconfigPaths) == 0 {
		ret.KconfigPaths = []string{proc.HostProcPath("config.gz")}
		if release, err := kernelRelease(); err == nil {
			ret.KconfigPaths = append(ret.KconfigPaths, proc.HostBootPath("config-"+release))
		}
	}
	if ret.ModulesPath == "" {
		ret.ModulesPath = proc.HostProcPath("modules")
	}
	return &ret
}

// Kernel gives read access to the running kernel symbols, tracing and type
// information. Every capability but the symbol table is optional. A Kernel
// is immutable once built and safe for concurrent use.
type Kernel struct {
	ksyms   *Kallsyms
	tracefs *tracefs

	btf    *kernelBTF
	btfErr error

	kconfig    kconfig
	kconfigErr error

	// nil when the module list can't be read
	modules map[string]struct{}
}

func New(opts *Options) (*Kernel, error) {
	opts = opts.withDefaults()

	ksyms, err := LoadKallsyms(opts.KallsymsPath)
	if err != nil {
		return nil, fmt.Errorf("load kernel symbols: %w", err)
	}
	glog.V(2).Infof("Loaded %d kernel symbols from %s", ksyms.Size(), opts.KallsymsPath)

	this := &Kernel{
		ksyms:   ksyms,
		tracefs: loadTracefs(opts.TracefsRoots),
	}

	if opts.DisableBTF {
		this.btfErr = fmt.Errorf("%w: disabled", ErrBTFUnavailable)
	} else {
		var btfDir string
		if opts.ModuleBTF {
			btfDir = proc.HostSysPath("kernel", "btf")
		}
		if this.btf, this.btfErr = loadKernelBTF(btfDir, opts.LayoutCacheSize); this.btfErr != nil {
			glog.Warningf("BTF queries are unavailable: %v", this.btfErr)
		}
	}

	this.kconfig, this.kconfigErr = loadKconfig(opts.KconfigPaths)

	if mods, err := proc.ParseModulesFile(opts.ModulesPath); err != nil {
		glog.Warningf("Loaded modules are unknown: %v", err)
	} else {
		this.modules = make(map[string]struct{}, len(mods))
		for _, m := range mods {
			this.modules[m.Name] = struct{}{}
		}
	}
	return this, nil
}

var defaultKernel struct {
	once   sync.Once
	kernel *Kernel
	err    error
}

// Default returns the process-wide Kernel, built on first use with the
// default options.
func Default() (*Kernel, error) {
	defaultKernel.once.Do(func() {
		defaultKernel.kernel, defaultKernel.err = New(nil)
	})
	return defaultKernel.kernel, defaultKernel.err
}

func (k *Kernel) IsEventTraceable(name string) Answer {
	return k.tracefs.isEventTraceable(name)
}

func (k *Kernel) IsFunctionTraceable(name string) Answer {
	return k.tracefs.isFunctionTraceable(name)
}

func (k *Kernel) SymbolAddr(name string) (uint64, error) { return k.ksyms.Addr(name) }

func (k *Kernel) SymbolName(addr uint64) (string, error) { return k.ksyms.Name(addr) }

// FindMatchingEvent returns the group:target event for target.
func (k *Kernel) FindMatchingEvent(target string) (string, bool) {
	return k.tracefs.findMatchingEvent(target)
}

// MatchingFunctions lists the traceable functions matching the glob
// pattern. Without a traceable function list, text symbols of the symbol
// table are used instead.
func (k *Kernel) MatchingFunctions(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	if k.tracefs.functions != nil {
		return matchAll(k.tracefs.functionList, g), nil
	}
	glog.V(2).Infof("No traceable function list, matching %q against kallsyms", pattern)
	names := lo.Uniq(matchAll(k.ksyms.Functions(), g))
	slices.Sort(names)
	return names, nil
}

func (k *Kernel) MatchingEvents(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return k.tracefs.matchingEvents(g)
}

func (k *Kernel) FunctionNargs(sym Typed) (uint32, error) {
	if k.btf == nil {
		return 0, k.btfErr
	}
	params, err := k.btf.layout(sym)
	if err != nil {
		return 0, err
	}
	return uint32(len(params)), nil
}

// ParameterOffset returns the index of the first parameter of sym having
// type typ. The boolean is false when sym has no such parameter.
func (k *Kernel) ParameterOffset(sym Typed, typ string) (uint32, bool, error) {
	if k.btf == nil {
		return 0, false, k.btfErr
	}
	params, err := k.btf.layout(sym)
	if err != nil {
		return 0, false, err
	}
	for i, p := range params {
		if p == typ {
			return uint32(i), true, nil
		}
	}
	return 0, false, nil
}

func (k *Kernel) ModuleLoaded(name string) Answer {
	if k.modules == nil {
		return Unavailable
	}
	_, ok := k.modules[name]
	return AnswerOf(ok)
}

// ConfigOption returns the value of a CONFIG_* option. The boolean is false
// when the option is not set; an error means no kernel config is readable.
func (k *Kernel) ConfigOption(key string) (string, bool, error) {
	if k.kconfig == nil {
		if k.kconfigErr == nil {
			return "", false, ErrNoKernelConfig
		}
		return "", false, k.kconfigErr
	}
	value, ok := k.kconfig[key]
	return value, ok, nil
}

// BTFAvailable tells whether layout queries can succeed.
func (k *Kernel) BTFAvailable() bool { return k.btf != nil }
