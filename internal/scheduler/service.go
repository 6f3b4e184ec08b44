package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ahmadsadek12/convoyd/internal/lock"
	"github.com/ahmadsadek12/convoyd/internal/logging"
)

// singletonLockTTL bounds how long a process may hold a job's advisory
// lock, well above either job's expected run time, so a crashed holder's
// lock still expires instead of starving every other process forever.
const singletonLockTTL = 5 * time.Minute

const (
	completerJobName = "scheduled-request-completer"
	archiveJobName   = "archive-worker"
	reaperJobName    = "session-reaper"
)

// Service owns the cron schedule for both background workers and enforces
// the per-process-singleton requirement via a Redis advisory lock, so that
// running multiple server processes never double-runs a tick.
type Service struct {
	completer *ScheduledRequestCompleter
	archiver  *ArchiveWorker
	reaper    *SessionReaper
	locks     *lock.Client
	cron      *cron.Cron
}

// NewService builds a Service that ticks completer every completerInterval,
// archiver on archiveCron, and reaper (when non-nil) on the completer's
// cadence, all guarded by locks.
func NewService(completer *ScheduledRequestCompleter, archiver *ArchiveWorker, reaper *SessionReaper, locks *lock.Client, completerInterval time.Duration, archiveCron string) (*Service, error) {
	if completerInterval <= 0 {
		completerInterval = time.Minute
	}
	if archiveCron == "" {
		archiveCron = "0 2 * * *"
	}

	c := cron.New(cron.WithLocation(time.UTC))
	svc := &Service{completer: completer, archiver: archiver, reaper: reaper, locks: locks, cron: c}

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", completerInterval), func() {
		svc.runSingleton(context.Background(), completerJobName, func(ctx context.Context) error {
			return svc.completer.Run(ctx, time.Now())
		})
	}); err != nil {
		return nil, fmt.Errorf("schedule completer: %w", err)
	}

	if _, err := c.AddFunc(archiveCron, func() {
		svc.runSingleton(context.Background(), archiveJobName, func(ctx context.Context) error {
			return svc.archiver.Run(ctx, time.Now())
		})
	}); err != nil {
		return nil, fmt.Errorf("schedule archive worker: %w", err)
	}

	if reaper != nil {
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", completerInterval), func() {
			svc.runSingleton(context.Background(), reaperJobName, func(ctx context.Context) error {
				return svc.reaper.Run(ctx, time.Now())
			})
		}); err != nil {
			return nil, fmt.Errorf("schedule session reaper: %w", err)
		}
	}

	return svc, nil
}

// Start begins cron execution. Running iterations are allowed to finish on
// Stop; no new batch is started after shutdown begins.
func (s *Service) Start() {
	s.cron.Start()
}

// Stop halts cron and waits for in-flight ticks to finish or ctx to expire.
func (s *Service) Stop(ctx context.Context) error {
	doneCtx := s.cron.Stop()
	select {
	case <-doneCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunCompleterNow runs one completer tick immediately, bypassing cron;
// used by `convoyd worker --once` and tests.
func (s *Service) RunCompleterNow(ctx context.Context) error {
	return s.completer.Run(ctx, time.Now())
}

// RunArchiveNow runs one archive tick immediately.
func (s *Service) RunArchiveNow(ctx context.Context) error {
	return s.archiver.Run(ctx, time.Now())
}

func (s *Service) runSingleton(ctx context.Context, jobName string, fn func(ctx context.Context) error) {
	if s.locks == nil {
		if err := fn(ctx); err != nil {
			logging.Logger().Warn("scheduled job failed", "job", jobName, "err", err)
		}
		return
	}

	handle, acquired, err := s.locks.Acquire(ctx, lock.SchedulerSingletonKey(jobName), singletonLockTTL)
	if err != nil {
		logging.Logger().Warn("scheduler lock acquisition failed", "job", jobName, "err", err)
		return
	}
	if !acquired {
		// Another process already owns this tick; skipping is correct, not an error.
		return
	}
	defer func() {
		if err := handle.Release(ctx); err != nil {
			logging.Logger().Warn("scheduler lock release failed", "job", jobName, "err", err)
		}
	}()

	if err := fn(ctx); err != nil {
		logging.Logger().Warn("scheduled job failed", "job", jobName, "err", err)
	}
}
