package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"courtmatch/internal/models"
	"courtmatch/internal/store"
)

const (
	sweeperLockName  = "expiry_sweeper"
	sweeperBatchSize = 500
)

// SweeperStore is the slice of the store the expiry sweeper needs.
type SweeperStore interface {
	store.RequestStore
	store.Locker
}

// SweeperConfig tunes the expiry sweeper. Zero values use the defaults.
type SweeperConfig struct {
	Interval        time.Duration
	LockTTL         time.Duration
	RetryMaxElapsed time.Duration
}

func (c SweeperConfig) withDefaults() SweeperConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	if c.RetryMaxElapsed <= 0 {
		c.RetryMaxElapsed = 30 * time.Second
	}
	return c
}

// ExpirySweeper moves pending requests past their expiry to expired. Every
// transition is conditioned on the request still being pending, so a pass
// can run alongside itself and alongside accept/decline.
type ExpirySweeper struct {
	deps
	store  SweeperStore
	cfg    SweeperConfig
	holder string
}

func NewExpirySweeper(st SweeperStore, cfg SweeperConfig, opts ...Option) *ExpirySweeper {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &ExpirySweeper{
		deps:   newDeps(opts),
		store:  st,
		cfg:    cfg.withDefaults(),
		holder: hostname + "-" + uuid.NewString()[:8],
	}
}

// Sweep expires every pending request whose expires_at is before now and
// returns how many it transitioned. Transient store failures retry the
// whole pass with exponential backoff.
func (s *ExpirySweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	total := 0
	op := func() error {
		n, err := s.sweepOnce(ctx, now)
		total += n
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.cfg.RetryMaxElapsed
	notify := func(err error, wait time.Duration) {
		s.logger.Warn().Err(err).Dur("retry_in", wait).Msg("Expiry sweep hit a transient failure, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		s.metrics.RequestsExpired(total)
		s.metrics.SweepRun("error")
		return total, fmt.Errorf("expiry sweep failed after %d transitions: %w", total, err)
	}

	s.metrics.RequestsExpired(total)
	s.metrics.SweepRun("ok")
	if total > 0 {
		s.logger.Info().Int("expired", total).Msg("Expired stale match requests")
	}
	return total, nil
}

func (s *ExpirySweeper) sweepOnce(ctx context.Context, now time.Time) (int, error) {
	count := 0
	for {
		batch, err := s.store.GetPendingExpiredRequests(ctx, now, sweeperBatchSize)
		if err != nil {
			return count, fmt.Errorf("failed to query expired requests: %w", err)
		}

		progressed := 0
		for i := range batch {
			ok, err := s.expire(ctx, &batch[i], now)
			if err != nil {
				return count, err
			}
			if ok {
				count++
				progressed++
			}
		}

		// A short batch is the last one. A full batch that moved nothing means
		// another sweeper holds the same rows, so stop instead of spinning.
		if len(batch) < sweeperBatchSize || progressed == 0 {
			return count, nil
		}
	}
}

func (s *ExpirySweeper) expire(ctx context.Context, r *models.MatchRequest, now time.Time) (bool, error) {
	_, err := s.store.UpdateRequestStatus(ctx, r.ID, models.RequestStatusPending, models.RequestStatusExpired, store.RequestPatch{
		UpdatedAt: now,
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrPreconditionFailed), errors.Is(err, store.ErrNotFound):
		// Accepted, declined, or already expired by another pass
		return false, nil
	default:
		return false, fmt.Errorf("failed to expire request %s: %w", r.ID, err)
	}

	s.emit(ctx, models.LifecycleEvent{
		Type:     models.EventRequestExpired,
		EntityID: r.ID,
		From:     string(models.RequestStatusPending),
		To:       string(models.RequestStatusExpired),
	})
	return true, nil
}

// RunLocked runs one sweep under the distributed sweeper lock. When another
// instance holds the lock it returns (0, false, nil).
func (s *ExpirySweeper) RunLocked(ctx context.Context) (int, bool, error) {
	acquired, err := s.store.TryAcquireLock(ctx, sweeperLockName, s.holder, s.cfg.LockTTL)
	if err != nil {
		s.metrics.SweepRun("error")
		return 0, false, fmt.Errorf("failed to acquire sweeper lock: %w", err)
	}
	if !acquired {
		s.metrics.SweepRun("skipped")
		s.logger.Debug().Msg("Expiry sweeper lock held elsewhere, skipping pass")
		return 0, false, nil
	}
	defer func() {
		if err := s.store.ReleaseLock(context.WithoutCancel(ctx), sweeperLockName, s.holder); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release expiry sweeper lock")
		}
	}()

	n, err := s.Sweep(ctx, s.now())
	return n, true, err
}

// Scheduler runs the sweeper periodically.
type Scheduler struct {
	sweeper   *ExpirySweeper
	scheduler gocron.Scheduler
	cancel    context.CancelFunc
}

// StartScheduler registers the sweep job and starts it. The first pass runs
// immediately to catch requests that expired while no instance was up.
func (s *ExpirySweeper) StartScheduler(ctx context.Context) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	_, err = gs.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			passCtx, passCancel := context.WithTimeout(jobCtx, s.cfg.LockTTL)
			defer passCancel()
			if _, _, err := s.RunLocked(passCtx); err != nil {
				s.logger.Error().Err(err).Msg("Expiry sweep failed")
			}
		}),
		gocron.WithName(sweeperLockName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = gs.Shutdown()
		return nil, fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	gs.Start()
	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("Expiry sweeper started")
	return &Scheduler{sweeper: s, scheduler: gs, cancel: cancel}, nil
}

// Stop cancels any running pass and waits for the scheduler to drain.
func (sc *Scheduler) Stop() error {
	sc.cancel()
	err := sc.scheduler.Shutdown()
	sc.sweeper.logger.Info().Msg("Expiry sweeper stopped")
	return err
}
