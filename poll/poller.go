// Package poll implements a bounded status poll as an explicit state machine.
//
// A Poller repeatedly issues a status transaction and evaluates a ready
// predicate against the fresh result. It never loops past the attempt budget
// given at construction:
//
//	p, _ := poll.New(readStatus, func(s byte) bool { return s&0x01 == 0 }, 100)
//	if err := p.Poll(ctx); errors.Is(err, bushal.ErrTimeout) { ... }
//
// Step exposes single transitions so callers can drive the poll from their
// own scheduler or from deterministic tests.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/bushal"
)

var ErrInvalidAttempts = errors.New("poll: at least one attempt is required")

type State int

const (
	Idle State = iota
	Evaluate
	Retry
	Ready
	Timeout
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Evaluate:
		return "evaluate"
	case Retry:
		return "retry"
	case Ready:
		return "ready"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Ready || s == Timeout
}

// StatusFunc issues one status transaction.
type StatusFunc[T any] func(ctx context.Context) (T, error)

// Predicate reports whether a status value means ready.
type Predicate[T any] func(status T) bool

type Opts struct {
	Interval time.Duration
}

type Opt func(*Opts)

// WithInterval pauses between attempts. The pause is cancelled by ctx.
func WithInterval(interval time.Duration) Opt {
	return func(o *Opts) {
		o.Interval = interval
	}
}

type Poller[T any] struct {
	read        StatusFunc[T]
	ready       Predicate[T]
	maxAttempts int
	config      Opts

	state    State
	attempts int
	last     T
}

func New[T any](read StatusFunc[T], ready Predicate[T], maxAttempts int, opts ...Opt) (*Poller[T], error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAttempts, maxAttempts)
	}
	if read == nil || ready == nil {
		return nil, errors.New("poll: status function and predicate are required")
	}
	var config Opts
	for _, opt := range opts {
		opt(&config)
	}
	return &Poller[T]{
		read:        read,
		ready:       ready,
		maxAttempts: maxAttempts,
		config:      config,
	}, nil
}

func (p *Poller[T]) State() State { return p.state }

func (p *Poller[T]) Attempts() int { return p.attempts }

// Last returns the most recent status value read.
func (p *Poller[T]) Last() T { return p.last }

// Reset returns the poller to Idle with a fresh attempt budget.
func (p *Poller[T]) Reset() {
	var zero T
	p.state = Idle
	p.attempts = 0
	p.last = zero
}

// Step performs exactly one transition and returns the new state. A failed
// status read leaves the state unchanged and returns the error.
func (p *Poller[T]) Step(ctx context.Context) (State, error) {
	switch p.state {
	case Idle:
		status, err := p.read(ctx)
		if err != nil {
			return p.state, fmt.Errorf("status read %d failed: %w", p.attempts+1, err)
		}
		p.attempts++
		p.last = status
		p.state = Evaluate
	case Evaluate:
		switch {
		case p.ready(p.last):
			p.state = Ready
		case p.attempts >= p.maxAttempts:
			p.state = Timeout
		default:
			p.state = Retry
		}
	case Retry:
		if err := p.pause(ctx); err != nil {
			return p.state, err
		}
		p.state = Idle
	}
	return p.state, nil
}

// Run steps until a terminal state is reached.
func (p *Poller[T]) Run(ctx context.Context) (State, error) {
	for !p.state.Terminal() {
		if _, err := p.Step(ctx); err != nil {
			return p.state, err
		}
	}
	return p.state, nil
}

// Poll runs the poller and maps Timeout to bushal.ErrTimeout.
func (p *Poller[T]) Poll(ctx context.Context) error {
	state, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if state == Timeout {
		return fmt.Errorf("%w after %d attempts", bushal.ErrTimeout, p.attempts)
	}
	return nil
}

func (p *Poller[T]) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.config.Interval <= 0 {
		return nil
	}
	timer := time.NewTimer(p.config.Interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Until is a shorthand for a single Poll run.
func Until[T any](ctx context.Context, read StatusFunc[T], ready Predicate[T], maxAttempts int, opts ...Opt) error {
	p, err := New(read, ready, maxAttempts, opts...)
	if err != nil {
		return err
	}
	return p.Poll(ctx)
}
