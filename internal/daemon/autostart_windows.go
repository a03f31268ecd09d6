//go:build windows

package daemon

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

func setAutoStart(enabled bool, command string) error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to open run key: %w", err)
	}
	defer key.Close()

	if enabled {
		if err := key.SetStringValue(AutoStartValueName, command); err != nil {
			return fmt.Errorf("failed to register auto start: %w", err)
		}
		return nil
	}

	if err := key.DeleteValue(AutoStartValueName); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("failed to remove auto start: %w", err)
	}
	return nil
}
