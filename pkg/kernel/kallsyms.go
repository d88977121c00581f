package kernel

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

type ksym struct {
	addr uint64
	typ  byte
	name string
}

// Kallsyms is an in-memory copy of the kernel symbol table. It is read-only
// once built.
type Kallsyms struct {
	// sorted by address, file order kept for aliases
	symbols []ksym
	byName  map[string]uint64
}

func LoadKallsyms(path string) (*Kallsyms, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open kallsyms %s: %w", path, err)
	}
	defer f.Close()
	return parseKallsyms(f)
}

// Example line: `ffffffffc1682010 T nf_nat_init\t[nf_nat]`
func parseKallsyms(r io.Reader) (*Kallsyms, error) {
	this := &Kallsyms{byName: make(map[string]uint64)}
	noAddress := true

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 || len(fields[1]) != 1 {
			return nil, fmt.Errorf("unexpected line in kallsyms: '%s'", scanner.Text())
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parse address value '%s': %w", fields[0], err)
		}
		if addr != 0 {
			noAddress = false
		}

		// a trailing [module] is not part of the name
		sym := ksym{addr: addr, typ: fields[1][0], name: fields[2]}
		this.symbols = append(this.symbols, sym)
		if _, ok := this.byName[sym.name]; !ok {
			this.byName[sym.name] = addr
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read kallsyms: %w", err)
	}
	if noAddress {
		return nil, ErrSymbolPermissions
	}

	sort.SliceStable(this.symbols, func(i, j int) bool {
		return this.symbols[i].addr < this.symbols[j].addr
	})
	return this, nil
}

func (k *Kallsyms) Size() int { return len(k.symbols) }

// Addr returns the address of the first symbol called name.
func (k *Kallsyms) Addr(name string) (uint64, error) {
	if addr, ok := k.byName[name]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("%s: %w", name, ErrNoSymbol)
}

// Name returns the symbol starting exactly at addr. An address pointing
// inside a symbol does not resolve.
func (k *Kallsyms) Name(addr uint64) (string, error) {
	i := sort.Search(len(k.symbols), func(i int) bool { return k.symbols[i].addr >= addr })
	if addr == 0 || i >= len(k.symbols) || k.symbols[i].addr != addr {
		return "", fmt.Errorf("0x%x: %w", addr, ErrNoSymbol)
	}
	return k.symbols[i].name, nil
}

// Functions lists the names of the text symbols, in address order.
func (k *Kallsyms) Functions() []string {
	var ret []string
	for _, sym := range k.symbols {
		if strings.IndexByte("TtWw", sym.typ) != -1 {
			ret = append(ret, sym.name)
		}
	}
	return ret
}
