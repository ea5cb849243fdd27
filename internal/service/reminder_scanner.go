package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReminderScanner drives periodic reminder scans. It runs until the context
// is cancelled.
type ReminderScanner struct {
	service  *ReminderService
	interval time.Duration
	logger   *zap.Logger
}

// NewReminderScanner builds the loop.
func NewReminderScanner(service *ReminderService, interval time.Duration, logger *zap.Logger) *ReminderScanner {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScanner{service: service, interval: interval, logger: logger}
}

// Run starts the dispatch workers, scans immediately and then on every tick.
func (s *ReminderScanner) Run(ctx context.Context) {
	s.service.Start(ctx)
	defer s.service.Stop()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *ReminderScanner) scan(ctx context.Context) {
	n, err := s.service.Scan(ctx)
	if err != nil {
		s.logger.Error("reminder scan failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("reminder scan enqueued work", zap.Int("reminders", n))
	}
}
