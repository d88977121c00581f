package proc

import (
	"flag"
	"path"
)

var (
	procPath = flag.String("proc-path", "/proc", "Path to proc directory")
	sysPath  = flag.String("sys-path", "/sys", "Path to sysfs directory")
	bootPath = flag.String("boot-path", "/boot", "Path to the directory holding kernel config files")
	hostPath = flag.String("host-path", "/", "The host directory. Useful in container.")
)

func HostProcPath(paths ...string) string { return hostJoin(*procPath, paths...) }

// HostSysPath is the sysfs counterpart of HostProcPath. Tracefs, debugfs and
// kernel BTF are all reached through it.
func HostSysPath(paths ...string) string { return hostJoin(*sysPath, paths...) }

func HostBootPath(paths ...string) string { return hostJoin(*bootPath, paths...) }

func join(base string, paths ...string) string {
	p := append([]string{base}, paths...)
	return path.Join(p...)
}

func hostJoin(base string, paths ...string) string {
	if *hostPath == "" || *hostPath == "/" {
		return join(base, paths...)
	}
	p := append([]string{*hostPath, base}, paths...)
	return path.Join(p...)
}
