// Package optimistic runs a local mutation ahead of the request that makes it
// durable, and reverts it if the request fails.
package optimistic

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/metrics"
)

// Command is one optimistic operation.
//
// Apply mutates view state and returns the function that restores the state
// it replaced; it may be nil for commands with nothing to show early.
// Request performs the server call. Reconcile merges the server's answer and
// runs only on success.
type Command[T any] struct {
	Name      string
	Apply     func() (undo func())
	Request   func(ctx context.Context) (T, error)
	Reconcile func(T)
}

// Runner carries what every command needs besides its own closures.
type Runner struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{metrics: m, logger: logger}
}

// Run applies cmd, performs its request, and either reconciles or rolls back.
func Run[T any](ctx context.Context, r *Runner, cmd Command[T]) (T, error) {
	var undo func()
	if cmd.Apply != nil {
		undo = cmd.Apply()
	}

	res, err := cmd.Request(ctx)
	if err != nil {
		if undo != nil {
			undo()
		}
		r.metrics.Rollback(cmd.Name)
		r.logger.Warn("optimistic command rolled back",
			zap.String("command", cmd.Name),
			zap.Error(err),
		)
		var zero T
		return zero, err
	}

	if cmd.Reconcile != nil {
		cmd.Reconcile(res)
	}
	return res, nil
}
