package app

import (
	"context"
	"sync"
	"time"

	"github.com/marketlens/account-service/internal/config"
	"github.com/marketlens/account-service/internal/repository"
	"github.com/marketlens/account-service/internal/service"
	"go.uber.org/zap"
)

// Sweeper runs the periodic maintenance jobs: purging dead sessions and
// downgrading expired premium subscriptions. Failures are logged and the
// next tick retries; a sweep never takes the service down.
type Sweeper struct {
	sessions service.SessionService
	users    repository.UserRepository
	logger   *zap.Logger
	cfg      config.SweepConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(
	sessions service.SessionService,
	users repository.UserRepository,
	logger *zap.Logger,
	cfg config.SweepConfig,
) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		users:    users,
		logger:   logger,
		cfg:      cfg,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.loop(ctx, "sessions", s.cfg.SessionInterval.Duration, s.sweepSessions)
	go s.loop(ctx, "subscriptions", s.cfg.SubscriptionInterval.Duration, s.sweepSubscriptions)
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) (int64, error)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			affected, err := job(ctx)
			if err != nil {
				s.logger.Error("Sweep failed",
					zap.String("sweep", name),
					zap.Error(err),
				)
				continue
			}
			s.logger.Info("Sweep completed",
				zap.String("sweep", name),
				zap.Int64("affected", affected),
			)
		}
	}
}

func (s *Sweeper) sweepSessions(ctx context.Context) (int64, error) {
	return s.sessions.SweepExpired(ctx)
}

func (s *Sweeper) sweepSubscriptions(ctx context.Context) (int64, error) {
	return s.users.ExpirePremium(ctx, time.Now().UTC())
}
