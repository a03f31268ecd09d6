package daemon

import (
	"errors"
	"fmt"
	"os"
)

// AutoStartValueName is the Run value registered for login start.
const AutoStartValueName = "NetSupportMonitor"

// ErrAutoStartUnsupported is returned where login start is not implemented.
var ErrAutoStartUnsupported = errors.New("auto start is only supported on windows")

// AutoStartCommand is the command line registered for login start.
func AutoStartCommand(executable string) string {
	return fmt.Sprintf(`"%s" start`, executable)
}

// SyncAutoStart registers or removes the current executable for login start.
func SyncAutoStart(enabled bool) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	return setAutoStart(enabled, AutoStartCommand(exe))
}
