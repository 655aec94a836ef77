package client

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   int
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2,
	}
}

type ControllerOptions struct {
	Retry     RetryConfig
	OnSuccess func(Generation)
	OnError   func(error)
}

// Controller drives one generation request with bounded, user-triggered
// retry and cancellable abort. Only one request should be in flight at a
// time; callers are expected to gate on IsLoading.
type Controller struct {
	client *Client
	opts   ControllerOptions

	mu         sync.Mutex
	loading    bool
	lastErr    error
	retryCount int
	cancel     context.CancelFunc

	sleep func(context.Context, time.Duration) error
}

func NewController(c *Client, opts ControllerOptions) *Controller {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryConfig()
	}
	return &Controller{
		client: c,
		opts:   opts,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// Generate issues the request under a fresh cancellation handle. A previous
// error is cleared on start. Cancellation via Abort is silent: no error is
// recorded and none is returned.
func (g *Controller) Generate(ctx context.Context, prompt, style, imageName string, image []byte) (*Generation, error) {
	callCtx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	g.loading = true
	g.lastErr = nil
	g.cancel = cancel
	g.mu.Unlock()

	gen, err := g.client.Generate(callCtx, prompt, style, imageName, bytes.NewReader(image))

	g.mu.Lock()
	g.loading = false
	g.cancel = nil
	if err != nil {
		if errors.Is(err, context.Canceled) {
			g.mu.Unlock()
			return nil, nil
		}
		g.lastErr = err
		if errors.Is(err, ErrOverloaded) && g.retryCount < g.opts.Retry.MaxAttempts {
			g.retryCount++
		}
		g.mu.Unlock()
		if g.opts.OnError != nil {
			g.opts.OnError(err)
		}
		return nil, err
	}
	g.retryCount = 0
	g.mu.Unlock()

	if g.opts.OnSuccess != nil {
		g.opts.OnSuccess(gen)
	}
	return &gen, nil
}

// Retry waits an exponentially increasing backoff and re-issues the request.
// It is a no-op once the retry budget is exhausted.
func (g *Controller) Retry(ctx context.Context, prompt, style, imageName string, image []byte) (*Generation, error) {
	g.mu.Lock()
	count := g.retryCount
	cfg := g.opts.Retry
	g.mu.Unlock()

	if count >= cfg.MaxAttempts {
		return nil, nil
	}

	delay := cfg.InitialDelay
	for i := 0; i < count; i++ {
		delay *= time.Duration(cfg.Multiplier)
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if err := g.sleep(ctx, delay); err != nil {
		return nil, nil
	}
	return g.Generate(ctx, prompt, style, imageName, image)
}

// Abort cancels the in-flight request, if any, and resets all state. An
// aborted attempt does not consume retry budget.
func (g *Controller) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.loading = false
	g.lastErr = nil
	g.retryCount = 0
}

func (g *Controller) IsLoading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

func (g *Controller) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

func (g *Controller) RetryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retryCount
}

// CanRetry is true only while retry budget remains and the last failure was
// the overload condition; validation or auth failures are not retryable.
func (g *Controller) CanRetry() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retryCount < g.opts.Retry.MaxAttempts && errors.Is(g.lastErr, ErrOverloaded)
}
