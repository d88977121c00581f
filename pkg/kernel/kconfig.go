package kernel

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sys/unix"
)

// kconfig maps CONFIG_* keys to their value. Options reported as
// "is not set" are absent.
type kconfig map[string]string

// loadKconfig reads the first available kernel config among paths. Files
// ending in .gz are decompressed.
func loadKconfig(paths []string) (kconfig, error) {
	for _, path := range paths {
		cfg, err := loadKconfigFile(path)
		if err != nil {
			glog.V(3).Infof("Kernel config %s not usable: %v", path, err)
			continue
		}
		glog.V(2).Infof("Loaded kernel config from %s (%d options)", path, len(cfg))
		return cfg, nil
	}
	return nil, fmt.Errorf("%w (tried %v)", ErrNoKernelConfig, paths)
}

func loadKconfigFile(path string) (kconfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip reader %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return parseKconfig(r)
}

func parseKconfig(r io.Reader) (kconfig, error) {
	ret := make(kconfig)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || !strings.HasPrefix(key, "CONFIG_") {
			continue
		}
		ret[key] = strings.Trim(value, `"`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read kernel config: %w", err)
	}
	return ret, nil
}

func kernelRelease() (string, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return string(bytes.TrimRight(uname.Release[:], "\x00")), nil
}
