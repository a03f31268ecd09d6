//go:build !windows

package daemon

func setAutoStart(enabled bool, command string) error {
	return ErrAutoStartUnsupported
}
