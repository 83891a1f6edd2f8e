// Package backoff retries the initial connection to a dependency with capped
// exponential backoff, logging each attempt.
package backoff

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/visits/internal/logger"
)

// Policy defines connection retry behavior.
type Policy struct {
	ConnectTimeout time.Duration // total time allowed for attempts (ex: 30s)
	RetryInterval  time.Duration // initial wait between attempts, doubled each time
	MaxWait        time.Duration // cap on the wait between attempts
	PingTimeout    time.Duration // timeout of a single attempt
	WarnThreshold  int           // attempts logged at warn level before switching to error
}

// Validate ensures every duration is usable.
func (p Policy) Validate() error {
	if p.ConnectTimeout <= 0 {
		return fmt.Errorf("ConnectTimeout must be > 0, got %v", p.ConnectTimeout)
	}
	if p.RetryInterval <= 0 {
		return fmt.Errorf("RetryInterval must be > 0, got %v", p.RetryInterval)
	}
	if p.MaxWait <= 0 {
		return fmt.Errorf("MaxWait must be > 0, got %v", p.MaxWait)
	}
	if p.PingTimeout <= 0 {
		return fmt.Errorf("PingTimeout must be > 0, got %v", p.PingTimeout)
	}
	if p.WarnThreshold < 0 {
		return fmt.Errorf("WarnThreshold must be >= 0, got %d", p.WarnThreshold)
	}
	return nil
}

// PingFunc performs a single connection attempt.
type PingFunc func(ctx context.Context) error

// attemptLogger handles all connection logging for one target.
type attemptLogger struct {
	logger logger.Logger
	target string // "redis", "postgres"
	addr   string
}

func (al *attemptLogger) start(timeout time.Duration) {
	al.logger.Info("connecting to "+al.target,
		logger.String("addr", al.addr),
		logger.Duration("timeout", timeout))
}

func (al *attemptLogger) success(attempts int, elapsed time.Duration) {
	if attempts > 1 {
		al.logger.Warn("connected to "+al.target+" after retry",
			logger.String("addr", al.addr),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", elapsed))
		return
	}
	al.logger.Info("connected to "+al.target, logger.String("addr", al.addr))
}

func (al *attemptLogger) timeout(attempts int, timeout time.Duration, err error) {
	al.logger.Error(al.target+" unavailable - failed to connect after timeout",
		logger.String("addr", al.addr),
		logger.Int("attempts", attempts),
		logger.Duration("timeout", timeout),
		logger.Error(err))
}

func (al *attemptLogger) retry(attempt int, remaining, nextRetry time.Duration, warnThreshold int, err error) {
	switch {
	case remaining < 10*time.Second:
		al.logger.Error(al.target+" still down - retrying but timeout approaching",
			logger.String("addr", al.addr),
			logger.Int("attempt", attempt),
			logger.Duration("remaining", remaining),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	case attempt <= warnThreshold:
		al.logger.Warn(al.target+" connection failed, retrying",
			logger.String("addr", al.addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	default:
		al.logger.Error(al.target+" still unavailable - connection attempts failing",
			logger.String("addr", al.addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	}
}

// Connect calls ping until it succeeds or the policy's ConnectTimeout is
// exhausted. The wait between attempts doubles up to MaxWait.
func Connect(ctx context.Context, target, addr string, p Policy, ping PingFunc, log logger.Logger) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.ConnectTimeout)
	defer cancel()

	al := &attemptLogger{logger: log, target: target, addr: addr}
	al.start(p.ConnectTimeout)

	attempt := 0
	wait := p.RetryInterval

	for {
		attempt++

		pingCtx, pingCancel := context.WithTimeout(ctx, p.PingTimeout)
		err := ping(pingCtx)
		pingCancel()

		if err == nil {
			al.success(attempt, p.ConnectTimeout-timeLeft(ctx))
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			al.timeout(attempt, p.ConnectTimeout, err)
			return fmt.Errorf("%s unavailable at %s after %d attempts (timeout: %v): %w",
				target, addr, attempt, p.ConnectTimeout, err)

		case <-timer.C:
			al.retry(attempt, timeLeft(ctx), wait, p.WarnThreshold, err)
			wait *= 2
			if wait > p.MaxWait {
				wait = p.MaxWait
			}
		}
	}
}

// timeLeft returns the remaining time before context deadline.
func timeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
