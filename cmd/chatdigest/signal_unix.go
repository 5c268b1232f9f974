//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals stop the webhook and drain running digests.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
