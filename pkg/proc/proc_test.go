package proc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPaths(t *testing.T) {
	assert.Equal(t, "/proc/kallsyms", HostProcPath("kallsyms"))
	assert.Equal(t, "/boot/config-6.5.0", HostBootPath("config-6.5.0"))
	assert.Equal(t, "/sys/kernel/btf/vmlinux", HostSysPath("kernel/btf", "vmlinux"))

	old := *hostPath
	t.Cleanup(func() { *hostPath = old })
	*hostPath = "/host"

	assert.Equal(t, "/host/proc/kallsyms", HostProcPath("kallsyms"))
	assert.Equal(t, "/host/sys/kernel/tracing", HostSysPath("kernel", "tracing"))
	assert.Equal(t, "/host/boot/config-6.5.0", HostBootPath("config-6.5.0"))
}

func TestParseModules(t *testing.T) {
	input := `nf_conntrack 176128 4 xt_conntrack,nf_nat,xt_MASQUERADE, Live 0x0000000000000000
nf_defrag_ipv6 24576 1 nf_conntrack, Live 0x0000000000000000
openvswitch 200704 0 - Loading 0x0000000000000000

`
	mods, err := parseModules(strings.NewReader(input))
	require.NoError(t, err)

	want := []*Module{
		{Name: "nf_conntrack", Size: 176128, State: "Live"},
		{Name: "nf_defrag_ipv6", Size: 24576, State: "Live"},
		{Name: "openvswitch", Size: 200704, State: "Loading"},
	}
	if diff := cmp.Diff(want, mods); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}
}

func TestParseModulesInvalidSize(t *testing.T) {
	_, err := parseModules(strings.NewReader("broken size 0 - Live 0x0\n"))
	assert.Error(t, err)
}

func TestParseModulesFile(t *testing.T) {
	_, err := ParseModulesFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "modules")
	require.NoError(t, os.WriteFile(path, []byte("xfs 2043904 1 - Live 0x0\n"), 0o644))
	mods, err := ParseModulesFile(path)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "xfs", mods[0].Name)
}
