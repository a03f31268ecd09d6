// Package main is the entry point for nsmon.
package main

import (
	"errors"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		if errors.As(err, &errConnected{}) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
