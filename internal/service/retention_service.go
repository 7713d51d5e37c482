package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Leganyst/platform-tracker/internal/metrics"
	"github.com/Leganyst/platform-tracker/internal/repository"
)

const DefaultRetentionMonths = 3

// RetentionService удаляет снапшоты старше окна хранения.
type RetentionService struct {
	repo   repository.SnapshotRepository
	clock  clockwork.Clock
	months int
	log    *slog.Logger
}

func NewRetentionService(repo repository.SnapshotRepository, clock clockwork.Clock, months int, log *slog.Logger) *RetentionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if months <= 0 {
		months = DefaultRetentionMonths
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetentionService{repo: repo, clock: clock, months: months, log: log}
}

// Cutoff возвращает самое старое время захвата, которое переживёт чистку (календарные месяцы).
func (s *RetentionService) Cutoff() time.Time {
	return s.clock.Now().UTC().AddDate(0, -s.months, 0)
}

// Sweep удаляет снапшоты до Cutoff и возвращает число удалённых строк.
func (s *RetentionService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.Cutoff()
	removed, err := s.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.SnapshotsPurgedTotal.Add(float64(removed))
	metrics.LastSweepTimestamp.Set(float64(s.clock.Now().Unix()))
	s.log.Info("retention sweep finished", "cutoff", cutoff.Format(time.RFC3339), "removed", removed)
	return removed, nil
}
