//go:build windows

package main

import "os"

// terminationSignals stop the webhook and drain running digests (Ctrl+C only).
var terminationSignals = []os.Signal{os.Interrupt}
