package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/covercheck/internal/ratelimit"
)

const (
	jobLockPrefix = "covercheck:lock:scheduler:"
	claimTimeout  = 2 * time.Second
)

// withJobLock runs fn while holding the job's lock. When another replica
// holds it the run is skipped and ran is false. Runs may still overlap once
// a redis lock TTL lapses; every job here is idempotent.
func (s *Scheduler) withJobLock(ctx context.Context, job string, fn func(context.Context) error) (ran bool, err error) {
	claimCtx, cancel := context.WithTimeout(ctx, claimTimeout)
	unlock, err := s.locker.Lock(claimCtx, jobLockPrefix+job)
	cancel()
	if err != nil {
		if errors.Is(err, ratelimit.ErrLockTimeout) && ctx.Err() == nil {
			return false, nil
		}
		return false, err
	}
	defer unlock()

	return true, fn(ctx)
}
