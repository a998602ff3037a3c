package archive

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// withDelayedInterrupt runs fn with SIGINT and SIGTERM held back. A signal
// received meanwhile is re-delivered once fn returns.
func withDelayedInterrupt(fn func() error) error {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	err := fn()
	signal.Stop(sigs)

	select {
	case sig := <-sigs:
		slog.Info("re-delivering delayed signal", "signal", sig.String())
		if p, findErr := os.FindProcess(os.Getpid()); findErr == nil {
			_ = p.Signal(sig)
		}
	default:
	}
	return err
}
