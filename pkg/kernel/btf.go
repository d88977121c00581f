package kernel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cilium/ebpf/btf"
	"github.com/elastic/go-freelru"
	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"github.com/zeebo/xxh3"
)

const defaultLayoutCacheSize = 1024

// typeSource is satisfied by *btf.Spec.
type typeSource interface {
	AnyTypesByName(name string) ([]btf.Type, error)
}

// kernelBTF resolves parameter layouts of functions and tracepoints. Layouts
// are the C spelling of each parameter type, e.g. "struct sk_buff *".
type kernelBTF struct {
	// vmlinux first, then modules
	sources []typeSource
	layouts *freelru.SyncedLRU[string, []string]
}

func hashString(s string) uint32 { return uint32(xxh3.HashString(s)) }

func newKernelBTF(sources []typeSource, cacheSize uint32) (*kernelBTF, error) {
	if cacheSize == 0 {
		cacheSize = defaultLayoutCacheSize
	}
	layouts, err := freelru.NewSynced[string, []string](cacheSize, hashString)
	if err != nil {
		return nil, fmt.Errorf("create layout cache: %w", err)
	}
	return &kernelBTF{sources: sources, layouts: layouts}, nil
}

// loadKernelBTF loads vmlinux BTF and, if btfDir is set, the split BTF of
// every module found there. A module failing to load is skipped.
func loadKernelBTF(btfDir string, cacheSize uint32) (*kernelBTF, error) {
	vmlinux, err := btf.LoadKernelSpec()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBTFUnavailable, err)
	}
	sources := []typeSource{vmlinux}

	if btfDir != "" {
		mods, err := loadModuleBTF(btfDir, vmlinux)
		if err != nil {
			glog.Warningf("Some module BTF could not be loaded: %v", err)
		}
		sources = append(sources, mods...)
		glog.V(2).Infof("Loaded BTF of %d kernel modules", len(mods))
	}
	return newKernelBTF(sources, cacheSize)
}

func loadModuleBTF(dir string, base *btf.Spec) ([]typeSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read BTF dir %s: %w", dir, err)
	}

	var ret []typeSource
	var errs *multierror.Error
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "vmlinux" {
			continue
		}
		spec, err := loadSplitSpec(filepath.Join(dir, entry.Name()), base)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		ret = append(ret, spec)
	}
	return ret, errs.ErrorOrNil()
}

func loadSplitSpec(path string, base *btf.Spec) (*btf.Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open BTF %s: %w", path, err)
	}
	defer f.Close()
	spec, err := btf.LoadSplitSpecFromReader(f, base)
	if err != nil {
		return nil, fmt.Errorf("load BTF %s: %w", path, err)
	}
	return spec, nil
}

// layout returns the parameter types of sym. Tracepoint typedefs have the
// probe data as an extra first parameter, which is not part of the layout.
func (b *kernelBTF) layout(sym Typed) ([]string, error) {
	name := sym.TypedefName()
	key := layoutKey(sym)
	if params, ok := b.layouts.Get(key); ok {
		return params, nil
	}

	proto, err := b.findProto(name, sym.IsEvent())
	if err != nil {
		return nil, err
	}
	params := proto.Params
	if sym.IsEvent() {
		if len(params) == 0 {
			return nil, fmt.Errorf("tracepoint typedef %s has no data parameter", name)
		}
		params = params[1:]
	}

	ret := make([]string, len(params))
	for i, p := range params {
		ret[i] = cTypeName(p.Type)
	}
	b.layouts.Add(key, ret)
	return ret, nil
}

// layoutKey tells functions and tracepoints apart, their layouts don't come
// from the same BTF kind.
func layoutKey(sym Typed) string {
	if sym.IsEvent() {
		return "event:" + sym.TypedefName()
	}
	return "func:" + sym.TypedefName()
}

func (b *kernelBTF) findProto(name string, event bool) (*btf.FuncProto, error) {
	for _, src := range b.sources {
		types, err := src.AnyTypesByName(name)
		if err != nil {
			if errors.Is(err, btf.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("lookup BTF %s: %w", name, err)
		}
		for _, typ := range types {
			if proto := protoOf(typ, event); proto != nil {
				return proto, nil
			}
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNoBTFType)
}

// protoOf extracts the prototype of a function (btf.Func) or of a tracepoint
// (btf.Typedef to a function pointer).
func protoOf(typ btf.Type, event bool) *btf.FuncProto {
	if !event {
		fn, ok := typ.(*btf.Func)
		if !ok {
			return nil
		}
		proto, _ := fn.Type.(*btf.FuncProto)
		return proto
	}

	td, ok := typ.(*btf.Typedef)
	if !ok {
		return nil
	}
	ptr, ok := td.Type.(*btf.Pointer)
	if !ok {
		return nil
	}
	proto, _ := ptr.Target.(*btf.FuncProto)
	return proto
}

// cTypeName spells typ the way it is written in kernel sources.
func cTypeName(typ btf.Type) string {
	switch t := typ.(type) {
	case nil, *btf.Void:
		return "void"
	case *btf.Pointer:
		target := cTypeName(t.Target)
		if strings.HasSuffix(target, "*") {
			return target + "*"
		}
		return target + " *"
	case *btf.Const:
		return "const " + cTypeName(t.Type)
	case *btf.Volatile:
		return "volatile " + cTypeName(t.Type)
	case *btf.Restrict:
		return cTypeName(t.Type)
	case *btf.Struct:
		return "struct " + t.Name
	case *btf.Union:
		return "union " + t.Name
	case *btf.Enum:
		return "enum " + t.Name
	case *btf.Fwd:
		if t.Kind == btf.FwdUnion {
			return "union " + t.Name
		}
		return "struct " + t.Name
	case *btf.Array:
		return cTypeName(t.Type) + fmt.Sprintf("[%d]", t.Nelems)
	case *btf.FuncProto:
		return "func"
	}
	return typ.TypeName()
}
