package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepIntervals задаёт периоды фоновых обходов.
type SweepIntervals struct {
	Expiry   time.Duration
	Reminder time.Duration
	Digest   time.Duration
}

// StartSweeps запускает фоновые обходы: экспирацию просроченных заказов,
// напоминания об оплате и сводку оператору. Обходы останавливаются при
// отмене контекста.
func (s *Service) StartSweeps(ctx context.Context, intervals SweepIntervals) {
	go s.runSweep(ctx, intervals.Expiry, "expiry", func(ctx context.Context) error {
		expired, err := s.ExpireStale(ctx, s.now())
		if err != nil {
			return err
		}
		if len(expired) > 0 {
			s.logger.Info("expired stale transactions", zap.Int("count", len(expired)))
		}
		return nil
	})

	go s.runSweep(ctx, intervals.Reminder, "reminder", func(ctx context.Context) error {
		reminded, err := s.RemindPending(ctx, s.now())
		if err != nil {
			return err
		}
		if reminded > 0 {
			s.logger.Info("sent payment reminders", zap.Int("count", reminded))
		}
		return nil
	})

	go s.runSweep(ctx, intervals.Digest, "digest", func(ctx context.Context) error {
		return s.OperatorDigest(ctx)
	})
}

func (s *Service) runSweep(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				s.logger.Error("sweep failed", zap.String("sweep", name), zap.Error(err))
			}
		}
	}
}
