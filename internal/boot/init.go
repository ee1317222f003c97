// Package boot runs the client's start-up sequence: restore the session,
// then register for push and prefetch the conversation lists.
package boot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/token"
)

// Step names.
const (
	StepAuth     = "auth"
	StepPush     = "push"
	StepChats    = "chats"
	StepGroups   = "groups"
	StepContacts = "contacts"
	StepRestore  = "restore"
)

var (
	// ErrStepTimeout is reported for a step that did not finish in time.
	ErrStepTimeout = errors.New("boot: step timed out")
	errPanicked    = errors.New("boot: step panicked")
)

// Session restores the signed-in user.
type Session interface {
	CheckAuth(ctx context.Context) (model.User, error)
}

// Loader prefetches view state.
type Loader interface {
	LoadChats(ctx context.Context) error
	LoadGroups(ctx context.Context) error
	LoadContacts(ctx context.Context) error
	RestoreLastChat(ctx context.Context) (bool, error)
}

// Registrar registers the device for push notifications.
type Registrar interface {
	Register(ctx context.Context, pushToken string) error
}

// Options tune the start-up sequence.
type Options struct {
	// Timeout bounds each step.
	Timeout time.Duration
	// Attempts caps how many times the sequence runs.
	Attempts int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// PushToken is registered when non-empty.
	PushToken string
}

// Result describes how start-up went.
type Result struct {
	User          model.User
	Authenticated bool
	Attempts      int
	// Failed lists the steps that were still failing after the last attempt.
	Failed []string
}

// Initializer runs the start-up sequence.
type Initializer struct {
	session Session
	loader  Loader
	push    Registrar
	opts    Options
	logger  *zap.Logger
	// recover, when set, is deferred in every goroutine Run starts.
	recover func()
}

// New creates an Initializer. push may be nil.
func New(session Session, loader Loader, push Registrar, opts Options, logger *zap.Logger) *Initializer {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	return &Initializer{
		session: session,
		loader:  loader,
		push:    push,
		opts:    opts,
		logger:  logging.OrNop(logger),
	}
}

// WithRecover sets a function deferred in each spawned goroutine.
func (i *Initializer) WithRecover(fn func()) *Initializer {
	i.recover = fn
	return i
}

// Run restores the session and prefetches data. Step timeouts and prefetch
// failures are soft: they are logged, retried while attempts remain, and
// reported in Result.Failed. Run returns an error only when the session
// check keeps failing for reasons other than being signed out, or ctx ends.
func (i *Initializer) Run(ctx context.Context) (Result, error) {
	var (
		res     Result
		lastErr error
		pending = []string{StepPush, StepChats, StepGroups, StepContacts}
		authed  bool
	)
	for attempt := 1; attempt <= i.opts.Attempts; attempt++ {
		res.Attempts = attempt
		if attempt > 1 && !i.pause(ctx) {
			return res, ctx.Err()
		}

		if !authed {
			u, err := i.checkAuth(ctx)
			switch {
			case err == nil:
				authed = true
				res.User = u
				res.Authenticated = true
			case errors.Is(err, token.ErrNoToken), errors.Is(err, api.ErrUnauthorized):
				i.logger.Info("no session to restore")
				return res, nil
			case ctx.Err() != nil:
				return res, ctx.Err()
			default:
				lastErr = err
				i.logger.Warn("session check failed",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}
		}

		pending = i.prefetch(ctx, pending)
		if len(pending) == 0 {
			break
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		i.logger.Warn("start-up incomplete",
			zap.Int("attempt", attempt),
			zap.Strings("failed", pending),
		)
	}

	if !authed {
		res.Failed = []string{StepAuth}
		return res, fmt.Errorf("boot: session check: %w", lastErr)
	}
	res.Failed = pending

	err := race(ctx, i.opts.Timeout, i.recover, func(ctx context.Context) error {
		_, err := i.loader.RestoreLastChat(ctx)
		return err
	})
	if err != nil {
		i.logger.Warn("restore last chat failed", zap.Error(err))
		res.Failed = append(res.Failed, StepRestore)
	}
	return res, nil
}

func (i *Initializer) checkAuth(ctx context.Context) (model.User, error) {
	var u model.User
	err := race(ctx, i.opts.Timeout, i.recover, func(ctx context.Context) error {
		var err error
		u, err = i.session.CheckAuth(ctx)
		return err
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// prefetch runs the pending steps concurrently and returns those that
// failed.
func (i *Initializer) prefetch(ctx context.Context, pending []string) []string {
	errs := make([]error, len(pending))
	var g errgroup.Group
	for n, step := range pending {
		fn := i.step(step)
		g.Go(func() error {
			errs[n] = race(ctx, i.opts.Timeout, i.recover, fn)
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for n, err := range errs {
		if err == nil {
			continue
		}
		i.logger.Warn("start-up step failed",
			zap.String("step", pending[n]),
			zap.Bool("timeout", errors.Is(err, ErrStepTimeout)),
			zap.Error(err),
		)
		failed = append(failed, pending[n])
	}
	return slices.Clip(failed)
}

func (i *Initializer) step(name string) func(context.Context) error {
	switch name {
	case StepPush:
		return func(ctx context.Context) error {
			if i.push == nil {
				return nil
			}
			return i.push.Register(ctx, i.opts.PushToken)
		}
	case StepChats:
		return i.loader.LoadChats
	case StepGroups:
		return i.loader.LoadGroups
	case StepContacts:
		return i.loader.LoadContacts
	}
	return func(context.Context) error { return fmt.Errorf("boot: unknown step %q", name) }
}

func (i *Initializer) pause(ctx context.Context) bool {
	if i.opts.RetryDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(i.opts.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// race runs fn with a deadline and returns as soon as either finishes, so a
// call that ignores its context still cannot hold start-up.
func race(ctx context.Context, d time.Duration, recoverFn func(), fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := errPanicked
		defer func() { done <- err }()
		if recoverFn != nil {
			defer recoverFn()
		}
		err = fn(ctx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrStepTimeout
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrStepTimeout
		}
		return ctx.Err()
	}
}
