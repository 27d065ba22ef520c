package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/exchange"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"go.uber.org/zap"
)

// Scheduler runs every account on its own goroutine. Accounts share nothing through it.
type Scheduler struct {
	accounts []*AccountContext
	logger   *logger.Logger

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(log *logger.Logger, accounts ...*AccountContext) *Scheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Scheduler{
		accounts: accounts,
		logger:   log,
		stop:     make(chan struct{}),
	}
}

func (s *Scheduler) Accounts() []*AccountContext {
	return s.accounts
}

// Start restores the open positions of every account and starts their loops.
// Rejected credentials abort the start; any other restore failure is logged and the account starts
// with what it has.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New(errors.ErrCodeInvalidParameter, "scheduler already started")
	}

	for _, account := range s.accounts {
		if err := account.Restore(ctx); err != nil {
			if exchange.IsAuth(err) {
				return errors.Wrapf(errors.ErrCodeExchangeAuth, err, "account %s cannot authenticate", account.ID())
			}

			s.logger.Warn("Failed to restore open positions",
				zap.String("account", account.ID()),
				zap.Error(err),
			)
		}
	}

	s.started = true

	for _, account := range s.accounts {
		s.wg.Add(1)

		go s.run(ctx, account)
	}

	s.logger.Info("Scheduler started", zap.Int("accounts", len(s.accounts)))

	return nil
}

// run loops until ctx is cancelled or Stop is called. Both are checked between cycles and while
// sleeping; a cycle that has started runs to completion.
func (s *Scheduler) run(ctx context.Context, account *AccountContext) {
	defer s.wg.Done()

	log := s.logger.With(zap.String("account", account.ID()))
	interval := account.Interval()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}

		report := account.RunCycle(context.WithoutCancel(ctx))

		log.Debug("Cycle finished",
			zap.Bool("skipped", report.Skipped),
			zap.String("health", string(report.Health.Status)),
			zap.Int("opened", len(report.Opened)),
			zap.Int("closed", len(report.Closed)),
			zap.Int("errors", report.Errors),
		)

		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-s.stop:
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}

// Stop signals every loop and waits for the in-flight cycles to finish. It is safe to call more than
// once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Wait blocks until every loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
