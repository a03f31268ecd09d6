package probes

import (
	"strconv"
	"strings"

	"github.com/user/nsmon/internal/util"
)

// RegistryPaths are the HKLM keys that carry the client's connection flag.
var RegistryPaths = []string{
	`SOFTWARE\NetSupport\NetSupport School`,
	`SOFTWARE\WOW6432Node\NetSupport\NetSupport School`,
}

// RegistryValueName is the value read under each of RegistryPaths.
const RegistryValueName = "Connected"

// RegistryReader reads a named value under an HKLM path. ok is false when
// the key or value does not exist.
type RegistryReader func(path, name string) (value any, ok bool, err error)

// RegistryProbe checks the persistent connection flag. It is only
// supported where a registry reader exists.
type RegistryProbe struct {
	read RegistryReader
}

// NewRegistryProbe creates a probe. A nil reader uses the platform reader,
// which is nil outside windows.
func NewRegistryProbe(read RegistryReader) *RegistryProbe {
	if read == nil {
		read = platformRegistryReader
	}
	return &RegistryProbe{read: read}
}

// Supported reports whether the probe can read a registry on this platform.
func (p *RegistryProbe) Supported() bool {
	return p.read != nil
}

// Scan returns true on the first path whose flag is truthy.
func (p *RegistryProbe) Scan() bool {
	if p.read == nil {
		return false
	}

	for _, path := range RegistryPaths {
		value, ok, err := p.read(path, RegistryValueName)
		if err != nil {
			util.Debug("Registry read %s failed: %v", path, err)
			continue
		}
		if ok && truthy(value) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case uint64:
		return val != 0
	case uint32:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		return truthyString(val)
	case []byte:
		return len(val) > 0
	default:
		return false
	}
}

// truthyString treats empty, zero and false-like REG_SZ values as unset.
func truthyString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n != 0
	}
	return true
}
