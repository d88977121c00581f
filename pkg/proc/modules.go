package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Module is one entry of /proc/modules.
type Module struct {
	Name  string
	Size  uint64
	State string
}

// ParseModulesFile reads the list of loaded kernel modules, usually from
// HostProcPath("modules").
func ParseModulesFile(path string) ([]*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()
	return parseModules(f)
}

// Each line looks like:
// nf_conntrack 176128 4 xt_conntrack,nf_nat,xt_MASQUERADE, Live 0x0000000000000000
func parseModules(r io.Reader) ([]*Module, error) {
	var ret []*Module
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		m := &Module{Name: fields[0]}
		if _, err := fmt.Sscanf(fields[1], "%d", &m.Size); err != nil {
			return nil, fmt.Errorf("parse size of module %s: %w", m.Name, err)
		}
		if len(fields) >= 5 {
			m.State = fields[4]
		}
		ret = append(ret, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan modules: %w", err)
	}
	return ret, nil
}
