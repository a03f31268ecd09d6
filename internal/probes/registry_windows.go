//go:build windows

package probes

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

var platformRegistryReader RegistryReader = readLocalMachine

func readLocalMachine(path, name string) (any, bool, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer key.Close()

	n, _, err := key.GetIntegerValue(name)
	if err == nil {
		return n, true, nil
	}
	if errors.Is(err, registry.ErrNotExist) {
		return nil, false, nil
	}
	if !errors.Is(err, registry.ErrUnexpectedType) {
		return nil, false, fmt.Errorf("failed to read %s\\%s: %w", path, name, err)
	}

	s, _, err := key.GetStringValue(name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s\\%s: %w", path, name, err)
	}
	return s, true, nil
}
