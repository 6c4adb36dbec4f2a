package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/meshwork/internal/logging"
	"github.com/aretw0/meshwork/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger from a level name.
// Quiet silences everything, e.g. for MCP over stdio.
func createLogger(level string, quiet bool) (*slog.Logger, error) {
	if quiet {
		return logging.NewNop(), nil
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// printSystemMessage prints a standardized system message to w.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// createDebugHooks logs every routed call and readiness transition at debug level.
func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCall: func(ctx context.Context, e *domain.CallEvent) {
			logger.Debug("Call", "node", e.NodeID, "service", e.Service, "action", e.Action, "request_id", e.RequestID)
		},
		OnReturn: func(ctx context.Context, e *domain.CallEvent) {
			if e.Err != nil {
				logger.Debug("Call Return (Error)", "node", e.NodeID, "service", e.Service, "action", e.Action, "target", e.Target, "duration", e.Duration, "err", e.Err)
			} else {
				logger.Debug("Call Return (Success)", "node", e.NodeID, "service", e.Service, "action", e.Action, "target", e.Target, "duration", e.Duration)
			}
		},
		OnReadiness: func(ctx context.Context, e *domain.ServiceEvent) {
			logger.Debug("Readiness", "node", e.NodeID, "service", e.Service, "readiness", e.Readiness)
		},
		OnDependencyFailed: func(ctx context.Context, e *domain.ServiceEvent) {
			logger.Debug("Dependency Failed", "node", e.NodeID, "service", e.Service, "dependency", e.Dependency)
		},
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}

// handleExecutionError turns interruptions into a clean exit.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}
