package kernel

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// FeatureSource answers kernel build and runtime module questions.
type FeatureSource interface {
	ConfigOption(key string) (string, bool, error)
	ModuleLoaded(name string) Answer
}

// CheckFeature verifies the kernel can provide the feature controlled by the
// config option, built-in or as the given module. Missing information is not
// an error: the feature might still work, so only definitive answers fail.
func CheckFeature(src FeatureSource, option, module string) error {
	value, ok, err := src.ConfigOption(option)
	if err != nil {
		if !errors.Is(err, ErrNoKernelConfig) {
			return fmt.Errorf("read %s: %w", option, err)
		}
		glog.Warningf("Kernel config unavailable, assuming %s is supported", option)
		return nil
	}

	switch {
	case ok && value == "y":
		return nil
	case ok && value == "m":
		if module != "" && src.ModuleLoaded(module) == No {
			return fmt.Errorf("'%s' is not loaded", module)
		}
		return nil
	}
	return fmt.Errorf("this kernel does not support %s", option)
}

func (k *Kernel) CheckFeature(option, module string) error {
	return CheckFeature(k, option, module)
}
