// Package breaker implements a three-state circuit breaker used to wrap
// individual repository operations. Each wrapped operation owns its own
// Breaker, so a failing query cannot open the circuit for an unrelated one.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the wrapped operation while the
// breaker is open. Callers must not assume the operation executed.
var ErrOpen = errors.New("circuit breaker open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	// Timeout bounds each wrapped call through the context passed to it.
	Timeout time.Duration
	// FailureThreshold is the failure percentage over the rolling window
	// that trips the breaker.
	FailureThreshold float64
	// MinRequests is the minimum number of calls in the window before the
	// failure percentage is evaluated.
	MinRequests int
	// Window is the rolling window over which outcomes are counted.
	Window time.Duration
	// ResetTimeout is how long an open breaker waits before half-opening.
	ResetTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:          3 * time.Second,
		FailureThreshold: 50,
		MinRequests:      5,
		Window:           10 * time.Second,
		ResetTimeout:     30 * time.Second,
	}
}

type outcome struct {
	at time.Time
	ok bool
}

type Breaker struct {
	name string
	cfg  Config

	mu       sync.Mutex
	state    State
	openedAt time.Time
	probing  bool
	window   []outcome

	now func() time.Time
}

func New(name string, cfg Config) *Breaker {
	return &Breaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a point-in-time snapshot for logging.
type Stats struct {
	State    string `json:"state"`
	Requests int    `json:"requests"`
	Failures int    `json:"failures"`
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(b.now())
	failures := 0
	for _, o := range b.window {
		if !o.ok {
			failures++
		}
	}
	return Stats{State: b.state.String(), Requests: len(b.window), Failures: failures}
}

// allow decides whether a call may proceed. The returned probe flag marks
// the single half-open trial call.
func (b *Breaker) allow() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if now.Sub(b.openedAt) < b.cfg.ResetTimeout {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		b.probing = false
		fallthrough
	case StateHalfOpen:
		if b.probing {
			return false, ErrOpen
		}
		b.probing = true
		return true, nil
	}
	return false, ErrOpen
}

func (b *Breaker) record(ok, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if probe {
		b.probing = false
		if ok {
			b.state = StateClosed
			b.window = nil
		} else {
			b.state = StateOpen
			b.openedAt = now
		}
		return
	}
	if b.state != StateClosed {
		return
	}

	b.window = append(b.window, outcome{at: now, ok: ok})
	b.prune(now)
	if ok {
		return
	}
	total := len(b.window)
	if total < b.cfg.MinRequests {
		return
	}
	failures := 0
	for _, o := range b.window {
		if !o.ok {
			failures++
		}
	}
	if float64(failures)/float64(total)*100 >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = now
		b.window = nil
	}
}

// prune drops outcomes that fell out of the rolling window. Must be called
// with the lock held.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for i < len(b.window) && b.window[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.window = b.window[i:]
	}
}

// Do runs fn through the breaker, preserving fn's result type. The call is
// bounded by the configured per-call timeout; a timeout counts as a failure.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	probe, err := b.allow()
	if err != nil {
		return zero, err
	}

	callCtx := ctx
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	out, err := fn(callCtx)
	b.record(err == nil, probe)
	if err != nil {
		return zero, err
	}
	return out, nil
}
