// Package sweeper releases interbank transfers left PENDING by a crash while
// their funds were held. Each released row gives its debit back to the
// sender and is logged for reconciliation with the remote bank.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/eaglebank/platform/shared/models"
	"github.com/robfig/cron/v3"
)

type StalePendingStore interface {
	ReleaseStalePending(ctx context.Context, txType models.TransactionType, cutoff time.Time) ([]models.Transaction, error)
}

type Sweeper struct {
	cron     *cron.Cron
	store    StalePendingStore
	schedule string
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func New(store StalePendingStore, schedule string, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Sweeper{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		store:    store,
		schedule: schedule,
		maxAge:   maxAge,
		logger:   logger.With("component", "pending_sweeper"),
		now:      time.Now,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.logger.Info("scheduled pending sweep", "schedule", s.schedule, "max_age", s.maxAge)
	s.cron.Start()
	return nil
}

// Stop halts scheduling; the returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.ErrorContext(ctx, "pending sweep failed", "error", err)
	}
}

// Sweep releases interbank transfers still PENDING after maxAge and returns
// how many were released.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	released, err := s.store.ReleaseStalePending(ctx, models.TransactionInterbankTransfer, cutoff)
	if err != nil {
		return 0, err
	}
	for _, t := range released {
		s.logger.WarnContext(ctx, "released stale pending transfer, reconcile with remote bank",
			"transaction_id", t.ID,
			"source", t.SourceAccountNumber,
			"destination", t.DestinationAccountNumber,
			"amount", t.Amount.String(),
			"created_at", t.CreatedAt,
			"cutoff", cutoff,
		)
	}
	return len(released), nil
}
