package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sakashimaa/go-pet-project/pkg/config"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Settings struct {
	Name string

	MaxAttempts         uint64
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	Multiplier          float64
	RandomizationFactor float64

	FailureRatio     float64
	MinRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

func SettingsFromConfig(name string, cfg config.Resilience) Settings {
	return Settings{
		Name:                name,
		MaxAttempts:         cfg.MaxAttempts,
		InitialBackoff:      cfg.InitialBackoff,
		MaxBackoff:          cfg.MaxBackoff,
		Multiplier:          cfg.Multiplier,
		RandomizationFactor: cfg.RandomizationFactor,
		FailureRatio:        cfg.FailureRatio,
		MinRequests:         cfg.MinRequests,
		Interval:            cfg.Interval,
		OpenTimeout:         cfg.OpenTimeout,
		HalfOpenRequests:    cfg.HalfOpenRequests,
	}
}

type StateListener func(name string, from, to gobreaker.State)

// Policy guards one remote call site with a circuit breaker and a bounded retry loop.
type Policy struct {
	settings Settings
	cb       *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewPolicy(settings Settings, logger *zap.Logger, listeners ...StateListener) *Policy {
	if settings.MaxAttempts == 0 {
		settings.MaxAttempts = 1
	}
	if settings.HalfOpenRequests == 0 {
		settings.HalfOpenRequests = 1
	}

	cbSettings := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.HalfOpenRequests,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests || counts.Requests == 0 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		// business rejections are answers, not outages
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)

			for _, listener := range listeners {
				listener(name, from, to)
			}
		},
	}

	return &Policy{
		settings: settings,
		cb:       gobreaker.NewCircuitBreaker(cbSettings),
		logger:   logger,
	}
}

func (p *Policy) Name() string {
	return p.settings.Name
}

func (p *Policy) State() gobreaker.State {
	return p.cb.State()
}

// Execute runs fn under the policy. Transient failures are retried with exponential backoff and jitter
// while the breaker admits calls; a refusing breaker ends the loop at once. Non-transient errors are
// returned untouched. Everything else ends as ErrUnavailable.
func Execute[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := 0

	operation := func() (T, error) {
		attempts++

		res, err := utils.ExecuteWithBreaker(p.cb, func() (T, error) {
			return fn(ctx)
		})
		if err == nil {
			return res, nil
		}

		if utils.IsBreakerRejection(err) {
			return zero, backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrUnavailable, p.settings.Name, err))
		}

		if !IsTransient(err) {
			return zero, backoff.Permanent(err)
		}

		return zero, err
	}

	notify := func(err error, wait time.Duration) {
		mylogger.Warn(
			ctx,
			p.logger,
			"Remote call failed, retrying",
			zap.String("call", p.settings.Name),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	res, err := backoff.RetryNotifyWithData(operation, p.newBackOff(ctx), notify)
	if err == nil {
		return res, nil
	}

	if IsTransient(err) || ctx.Err() != nil {
		return zero, fmt.Errorf("%w: %s failed after %d attempt(s): %w", ErrUnavailable, p.settings.Name, attempts, err)
	}

	return zero, err
}

func (p *Policy) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.settings.InitialBackoff
	exp.MaxInterval = p.settings.MaxBackoff
	exp.Multiplier = p.settings.Multiplier
	exp.RandomizationFactor = p.settings.RandomizationFactor
	exp.MaxElapsedTime = 0

	if exp.InitialInterval <= 0 {
		exp.InitialInterval = backoff.DefaultInitialInterval
	}
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	if exp.Multiplier < 1 {
		exp.Multiplier = backoff.DefaultMultiplier
	}

	return backoff.WithContext(backoff.WithMaxRetries(exp, p.settings.MaxAttempts-1), ctx)
}
