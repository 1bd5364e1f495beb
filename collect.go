package tiktok

import (
	"context"
	"time"
)

// StopReason says why a collection loop ended.
type StopReason string

const (
	StopNone        StopReason = ""
	StopTarget      StopReason = "target_reached"
	StopIdle        StopReason = "idle_limit"
	StopMaxAttempts StopReason = "max_attempts"
	StopDeadline    StopReason = "deadline"
	StopCanceled    StopReason = "canceled"
)

// Limits bounds a collection loop. Zero MaxAttempts, MaxIdle or MaxDuration
// disables that bound; at least one must be set.
type Limits struct {
	Target      int
	MaxAttempts int
	// MaxIdle is the number of consecutive attempts without a new item that
	// is tolerated; one more ends the loop.
	MaxIdle     int
	MaxDuration time.Duration
}

// Bounded reports whether some bound other than the target ends the loop.
func (l Limits) Bounded() bool {
	return l.MaxAttempts > 0 || l.MaxIdle > 0 || l.MaxDuration > 0
}

// Decision is the outcome of one attempt.
type Decision struct {
	Added  int
	Stop   bool
	Reason StopReason
}

// Accumulator keeps the first occurrence of every key in discovery order.
// It is not safe for concurrent use.
type Accumulator[T any] struct {
	limits   Limits
	key      func(T) string
	seen     map[string]struct{}
	items    []T
	attempts int
	idle     int
}

// NewAccumulator returns an empty accumulator keyed by key.
func NewAccumulator[T any](limits Limits, key func(T) string) *Accumulator[T] {
	return &Accumulator[T]{
		limits: limits,
		key:    key,
		seen:   make(map[string]struct{}),
	}
}

// Observe records one attempt that produced batch and decides whether the
// loop should continue. Empty keys and already seen keys are dropped. Items
// past the target are not added.
func (a *Accumulator[T]) Observe(batch []T) Decision {
	a.attempts++

	added := 0
	for _, item := range batch {
		if a.full() {
			break
		}
		k := a.key(item)
		if k == "" {
			continue
		}
		if _, dup := a.seen[k]; dup {
			continue
		}
		a.seen[k] = struct{}{}
		a.items = append(a.items, item)
		added++
	}

	if added == 0 {
		a.idle++
	} else {
		a.idle = 0
	}

	d := Decision{Added: added}
	switch {
	case a.full():
		d.Stop, d.Reason = true, StopTarget
	case a.limits.MaxIdle > 0 && a.idle > a.limits.MaxIdle:
		d.Stop, d.Reason = true, StopIdle
	case a.limits.MaxAttempts > 0 && a.attempts >= a.limits.MaxAttempts:
		d.Stop, d.Reason = true, StopMaxAttempts
	}
	return d
}

func (a *Accumulator[T]) full() bool {
	return a.limits.Target > 0 && len(a.items) >= a.limits.Target
}

// Items returns the accumulated items in discovery order.
func (a *Accumulator[T]) Items() []T {
	out := make([]T, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Accumulator[T]) Len() int      { return len(a.items) }
func (a *Accumulator[T]) Attempts() int { return a.attempts }
func (a *Accumulator[T]) Idle() int     { return a.idle }

// Result is what a collection loop produced.
type Result[T any] struct {
	Items    []T
	Partial  bool
	Reason   StopReason
	Attempts int
}

func (a *Accumulator[T]) result(reason StopReason) Result[T] {
	return Result[T]{
		Items:    a.Items(),
		Partial:  len(a.items) < a.limits.Target,
		Reason:   reason,
		Attempts: a.attempts,
	}
}

// Source produces the items visible after one advancement.
type Source[T any] interface {
	Next(ctx context.Context) ([]T, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context) ([]T, error)

func (f SourceFunc[T]) Next(ctx context.Context) ([]T, error) { return f(ctx) }

// Collect pulls from src until the target is reached or a bound is hit.
// Errors from src are logged and count as an attempt with nothing new.
// On context cancellation the partial result is returned with ctx.Err().
// Limits without any bound besides the target are rejected with ErrUnbounded.
func Collect[T any](ctx context.Context, src Source[T], key func(T) string, limits Limits) (Result[T], error) {
	acc := NewAccumulator(limits, key)
	if limits.Target <= 0 {
		return acc.result(StopTarget), nil
	}
	if !limits.Bounded() {
		return acc.result(StopNone), ErrUnbounded
	}

	start := time.Now()
	log := logger()

	for {
		if err := ctx.Err(); err != nil {
			return acc.result(StopCanceled), err
		}
		if limits.MaxDuration > 0 && time.Since(start) >= limits.MaxDuration {
			return acc.result(StopDeadline), nil
		}

		batch, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return acc.result(StopCanceled), ctx.Err()
			}
			log.Warn().Err(err).Int("attempt", acc.Attempts()+1).Msg("extraction failed, counting as idle")
			batch = nil
		}

		d := acc.Observe(batch)
		log.Debug().
			Int("attempt", acc.Attempts()).
			Int("visible", len(batch)).
			Int("added", d.Added).
			Int("collected", acc.Len()).
			Int("target", limits.Target).
			Int("idle", acc.Idle()).
			Msg("collect attempt")
		if d.Added > 0 {
			log.Info().Msgf("Collected %d/%d", acc.Len(), limits.Target)
		}
		if d.Stop {
			log.Info().Str("reason", string(d.Reason)).Int("collected", acc.Len()).Int("attempts", acc.Attempts()).Msg("collection stopped")
			return acc.result(d.Reason), nil
		}
	}
}
