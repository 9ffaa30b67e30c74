// Package signals installs the process-wide interrupt handler
// cmd/qumulus uses to trigger graceful shutdown. Grounded on
// original_source/src/main.rs, whose main thread just parks forever
// with no signal handling at all; a deployable replica needs one
// regardless, so this is this implementation's own addition, kept as
// its own small package to match the teacher's root-level (not
// internal/) package layout.
package signals

import (
	"os"
	"os/signal"
	"syscall"
)

var handlerInstalled bool

// SetupHandler installs the process's SIGINT/SIGTERM handler and
// returns the channel it delivers to. It may be called only once per
// process; a second call panics rather than silently returning a
// second, redundant channel that would race the first for delivery.
func SetupHandler() <-chan os.Signal {
	if handlerInstalled {
		panic("signals: handler already installed")
	}
	handlerInstalled = true

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}
