package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

const (
	pipelineLockKey = "trajgen:pipeline:lock"
	defaultLockTTL  = 30 * time.Minute
)

// Locker guards a scheduled job against concurrent runs across replicas.
type Locker interface {
	// TryLock returns false when another holder owns the key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, func(), error)
}

// RedisLocker is a SETNX lock with a token-checked release.
type RedisLocker struct {
	Rdb redis.UniversalClient
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, func(), error) {
	token := uuid.NewString()
	ok, err := l.Rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return false, func() {}, err
	}
	release := func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.Rdb, []string{key}, token).Err()
	}
	return true, release, nil
}

// Scheduler runs a job on a cron schedule.
type Scheduler struct {
	expr    *cronexpr.Expression
	job     func(ctx context.Context) error
	locker  Locker
	lockTTL time.Duration
	logger  *log.Logger
	now     func() time.Time
}

// NewScheduler parses spec (standard cron or @hourly/@daily style). locker
// may be nil for single-instance deployments.
func NewScheduler(spec string, job func(ctx context.Context) error, locker Locker, logger *log.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	return &Scheduler{expr: expr, job: job, locker: locker, lockTTL: defaultLockTTL, logger: logger, now: time.Now}, nil
}

// Next returns the next fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time { return s.expr.Next(t) }

// Start blocks until ctx is cancelled, firing the job at each scheduled time.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := s.Next(s.now())
		if next.IsZero() {
			s.logger.Printf("schedule has no future fire times; stopping")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Fire(ctx)
		}
	}
}

// Fire runs the job once if the lock can be taken.
func (s *Scheduler) Fire(ctx context.Context) bool {
	if s.locker != nil {
		ok, release, err := s.locker.TryLock(ctx, pipelineLockKey, s.lockTTL)
		if err != nil {
			s.logger.Printf("lock failed: %v", err)
			return false
		}
		if !ok {
			s.logger.Printf("pipeline already running elsewhere; skipping")
			return false
		}
		defer release()
	}
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Printf("scheduled pipeline failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return true
	}
	s.logger.Printf("scheduled pipeline finished in %s", time.Since(start).Round(time.Millisecond))
	return true
}
