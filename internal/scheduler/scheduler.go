package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blsuntech/internal/clock"
	obsmetrics "github.com/smallbiznis/blsuntech/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/blsuntech/internal/payment/domain"
	"github.com/smallbiznis/blsuntech/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobWebhookReplay = "webhook_replay"
	jobLockPrefix    = "scheduler:job:"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type jobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	PaymentSvc paymentdomain.Service
	Locker     *ratelimit.Locker   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	Config     Config              `optional:"true"`
}

// Scheduler runs background jobs on a fixed interval. When Redis is
// configured each job holds a lock for the duration of its run so only one
// replica executes it per tick.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	paymentSvc paymentdomain.Service
	locker     jobLocker
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.PaymentSvc == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		paymentSvc: p.PaymentSvc,
		obsMetrics: p.ObsMetrics,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{jobWebhookReplay, !s.cfg.DisableReplayJob, s.WebhookReplayJob},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
		}
	}
	return err
}

// WebhookReplayJob re-dispatches webhook events whose side effects failed.
func (s *Scheduler) WebhookReplayJob(ctx context.Context) error {
	replayed, err := s.paymentSvc.ReplayFailed(ctx, s.cfg.ReplayBatchSize)
	if replayed > 0 {
		s.log.Info("webhook events replayed", zap.Int("count", replayed))
	}
	return err
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", s.genID.Generate().String()),
	)

	if s.locker != nil {
		key := jobLockPrefix + name
		token, ok, err := s.locker.TryLock(parent, key, s.cfg.RunInterval)
		switch {
		case err != nil:
			log.Warn("job lock unavailable, running unlocked", zap.Error(err))
		case !ok:
			log.Debug("job held by another replica")
			s.obsMetrics.RecordSchedulerJob(parent, name, "skipped")
			return nil
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(parent), key, token); err != nil {
					log.Warn("job lock release failed", zap.Error(err))
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	if err == nil {
		s.obsMetrics.RecordSchedulerJob(parent, name, "ok")
		log.Debug("job finished", zap.Duration("duration", elapsed))
		return nil
	}

	// deadline and cancellation are soft failures; the next tick retries
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.obsMetrics.RecordSchedulerJob(parent, name, "timeout")
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.obsMetrics.RecordSchedulerJob(parent, name, "error")
	return fmt.Errorf("%s: %w", name, err)
}
