package kernel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeFeatures struct {
	config    map[string]string
	configErr error
	modules   map[string]Answer
}

func (f *fakeFeatures) ConfigOption(key string) (string, bool, error) {
	if f.configErr != nil {
		return "", false, f.configErr
	}
	v, ok := f.config[key]
	return v, ok, nil
}

func (f *fakeFeatures) ModuleLoaded(name string) Answer {
	if a, ok := f.modules[name]; ok {
		return a
	}
	return Unavailable
}

func TestCheckFeature(t *testing.T) {
	src := &fakeFeatures{
		config: map[string]string{
			"CONFIG_OPENVSWITCH":  "y",
			"CONFIG_NF_CONNTRACK": "m",
			"CONFIG_NET_SCH_FQ":   "m",
			"CONFIG_PSAMPLE":      "n",
		},
		modules: map[string]Answer{
			"nf_conntrack": Yes,
			"sch_fq":       No,
		},
	}

	tests := []struct {
		name    string
		option  string
		module  string
		wantErr string
	}{
		{"builtin", "CONFIG_OPENVSWITCH", "openvswitch", ""},
		{"module loaded", "CONFIG_NF_CONNTRACK", "nf_conntrack", ""},
		{"module not loaded", "CONFIG_NET_SCH_FQ", "sch_fq", "'sch_fq' is not loaded"},
		{"module unknown", "CONFIG_NF_CONNTRACK", "nf_nat", ""},
		{"module not named", "CONFIG_NET_SCH_FQ", "", ""},
		{"disabled", "CONFIG_PSAMPLE", "psample", "this kernel does not support CONFIG_PSAMPLE"},
		{"not set", "CONFIG_NET_DROP_MONITOR", "", "this kernel does not support CONFIG_NET_DROP_MONITOR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFeature(src, tt.option, tt.module)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckFeatureNoConfig(t *testing.T) {
	src := &fakeFeatures{configErr: ErrNoKernelConfig}
	assert.NoError(t, CheckFeature(src, "CONFIG_OPENVSWITCH", ""))

	boom := errors.New("boom")
	src = &fakeFeatures{configErr: boom}
	assert.ErrorIs(t, CheckFeature(src, "CONFIG_OPENVSWITCH", ""), boom)
}
