package probes

import (
	"errors"
	"testing"
)

func registryWith(values map[string]any) RegistryReader {
	return func(path, name string) (any, bool, error) {
		v, ok := values[path+`\`+name]
		return v, ok, nil
	}
}

func TestRegistryProbe(t *testing.T) {
	native := RegistryPaths[0] + `\` + RegistryValueName
	wow := RegistryPaths[1] + `\` + RegistryValueName

	tests := []struct {
		name   string
		values map[string]any
		want   bool
	}{
		{"no keys", map[string]any{}, false},
		{"dword one", map[string]any{native: uint64(1)}, true},
		{"dword zero", map[string]any{native: uint64(0)}, false},
		{"wow64 string", map[string]any{wow: "yes"}, true},
		{"empty string", map[string]any{wow: ""}, false},
		{"string zero", map[string]any{native: "0"}, false},
		{"string false", map[string]any{native: "False"}, false},
		{"string one", map[string]any{native: " 1 "}, true},
		{"first false second true", map[string]any{native: uint64(0), wow: uint64(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewRegistryProbe(registryWith(tt.values))
			if !p.Supported() {
				t.Fatal("probe with a reader should be supported")
			}
			if got := p.Scan(); got != tt.want {
				t.Errorf("Scan = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryProbeReadErrorIsAbsence(t *testing.T) {
	p := NewRegistryProbe(func(path, name string) (any, bool, error) {
		return nil, false, errors.New("access denied")
	})
	if p.Scan() {
		t.Error("read error must not report a connection")
	}
}

func TestRegistryProbeUnsupported(t *testing.T) {
	p := &RegistryProbe{}
	if p.Supported() {
		t.Error("probe without a reader should be unsupported")
	}
	if p.Scan() {
		t.Error("unsupported probe must report false")
	}
}
