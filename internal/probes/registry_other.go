//go:build !windows

package probes

// No registry outside windows; the probe always reports false.
var platformRegistryReader RegistryReader
