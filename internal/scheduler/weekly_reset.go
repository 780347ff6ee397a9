package scheduler

import (
	"context"
	"time"

	"github.com/Arrogantx/hyperian/internal/repository"
	"github.com/Arrogantx/hyperian/pkg/logger"

	"github.com/robfig/cron/v3"
)

// WeeklyResetScheduler zeroes every wallet's weekly_points at the cycle
// boundary. The claim engine only ever accumulates weekly_points; the reset
// lives entirely here.
type WeeklyResetScheduler struct {
	cron     *cron.Cron
	ledger   *repository.LedgerRepository
	cronExpr string
}

func NewWeeklyResetScheduler(ledger *repository.LedgerRepository, cronExpr string) *WeeklyResetScheduler {
	return &WeeklyResetScheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		ledger:   ledger,
		cronExpr: cronExpr,
	}
}

func (s *WeeklyResetScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, s.resetWeeklyPoints)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Weekly reset scheduler started")
	return nil
}

func (s *WeeklyResetScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Weekly reset scheduler stopped")
}

func (s *WeeklyResetScheduler) resetWeeklyPoints() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	affected, err := s.ledger.ResetWeeklyPoints(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to reset weekly points")
		return
	}

	logger.WithFields(map[string]interface{}{
		"wallets": affected,
	}).Info("Weekly points reset")
}
