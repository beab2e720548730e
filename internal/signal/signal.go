// Package signal provides centralized signal handling for graceful shutdown.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/newhook/pipewatch/internal/logging"
)

// exitCode is used when a second signal forces an immediate exit.
const exitCode = 130

// exit is replaced in tests.
var exit = os.Exit

// WithSignalCancel returns a context that is cancelled when SIGINT or SIGTERM
// is received. A second signal while shutting down exits the process.
// The returned cancel function should be called to clean up resources when done.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logging.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			return
		}

		sig := <-sigChan
		logging.Warn("received second signal, exiting", "signal", sig.String())
		exit(exitCode)
	}()

	return ctx, cancel
}
