//go:build windows

package main

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// detachAttr starts the daemon without a console in its own process group.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}
