// Package retry re-runs store calls that failed for transient reasons.
//
// The delay before retry n is min(BaseDelay*2^n, MaxDelay). No jitter is
// added; callers that fan out heavily can wrap Sleep to add their own.
package retry

import (
	"context"
	"errors"
	"time"

	"backend-birdtours/internal/shared/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 10 * time.Second
)

type SleepFunc func(ctx context.Context, d time.Duration) error

type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Sleep      SleepFunc
	Logger     *logrus.Logger
}

type Option func(*Policy)

func WithMaxRetries(n int) Option { return func(p *Policy) { p.MaxRetries = n } }

func WithSleep(fn SleepFunc) Option { return func(p *Policy) { p.Sleep = fn } }

func WithLogger(l *logrus.Logger) Option { return func(p *Policy) { p.Logger = l } }

func WithDelays(base, max time.Duration) Option {
	return func(p *Policy) {
		p.BaseDelay = base
		p.MaxDelay = max
	}
}

// NewPolicy returns the default policy with opts applied.
func NewPolicy(opts ...Option) Policy {
	return newPolicy(opts)
}

func newPolicy(opts []Option) Policy {
	p := Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// Delay returns the wait before the retry that follows attemptsUsed failures
// (0-based).
func (p Policy) Delay(attemptsUsed int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attemptsUsed; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retryable reports whether err is a connection-class store error or carries
// a network-failure message.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return apperr.IsConnectionCode(pgErr.Code)
	}
	return apperr.HasTransientKeyword(err.Error())
}

// Do runs op and retries it while the failure is retryable and retries
// remain. The last error is returned unchanged.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts ...Option) (T, error) {
	p := newPolicy(opts)

	var zero T
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= p.MaxRetries || !Retryable(err) {
			return zero, err
		}

		delay := p.Delay(attempt)
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"attempt":  attempt + 1,
				"delay_ms": delay.Milliseconds(),
				"error":    err.Error(),
			}).Warn("retrying store call")
		}
		if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, op func(context.Context) error, opts ...Option) error {
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
