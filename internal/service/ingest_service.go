package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Leganyst/platform-tracker/internal/departure"
	"github.com/Leganyst/platform-tracker/internal/metrics"
	"github.com/Leganyst/platform-tracker/internal/model"
	"github.com/Leganyst/platform-tracker/internal/repository"
)

// Итог обработки одного обновления.
type IngestResult struct {
	Appended bool
	// последний сохранённый снапшот рейса после обработки
	Snapshot *model.Snapshot
	// платформа для показа: текущая или последняя известная за день
	DisplaySlot *string
}

// Итоги по пачке.
type IngestSummary struct {
	Received  int
	Appended  int
	Unchanged int
	Failed    int
}

// IngestService пишет обновления в снапшоты, только если состояние рейса
// отличается от последнего снапшота.
type IngestService struct {
	repo     repository.SnapshotRepository
	resolver *departure.Resolver
	log      *slog.Logger

	// чтение-решение-запись по одному
	mu sync.Mutex
}

func NewIngestService(repo repository.SnapshotRepository, resolver *departure.Resolver, log *slog.Logger) *IngestService {
	if log == nil {
		log = slog.Default()
	}
	return &IngestService{repo: repo, resolver: resolver, log: log}
}

func (s *IngestService) Ingest(ctx context.Context, raw departure.RawUpdate) (IngestResult, error) {
	id, state, err := s.resolver.Resolve(raw)
	if err != nil {
		metrics.IngestErrorsTotal.WithLabelValues(metrics.ReasonInvalid).Inc()
		return IngestResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.repo.MostRecent(ctx, id.ServiceDate, id.Destination, id.ScheduledTime)
	if err != nil {
		metrics.IngestErrorsTotal.WithLabelValues(metrics.ReasonStorage).Inc()
		return IngestResult{}, err
	}

	var prevState *departure.State
	if prev != nil {
		st := prev.State()
		prevState = &st
	}

	res := IngestResult{Snapshot: prev}
	if departure.Changed(prevState, state) {
		snap := model.NewSnapshot(id, state)
		if err := s.repo.Append(ctx, snap); err != nil {
			metrics.IngestErrorsTotal.WithLabelValues(metrics.ReasonStorage).Inc()
			return IngestResult{}, err
		}
		res.Appended = true
		res.Snapshot = snap
		metrics.SnapshotsTotal.WithLabelValues(metrics.OutcomeAppended).Inc()

		s.log.Debug("snapshot appended",
			"service_date", id.ServiceDateISO(),
			"scheduled_time", id.ScheduledTime,
			"destination", id.Destination,
			"resource_slot", deref(state.ResourceSlot),
			"cancelled", state.IsCancelled,
		)
	} else {
		metrics.SnapshotsTotal.WithLabelValues(metrics.OutcomeUnchanged).Inc()
	}

	res.DisplaySlot = res.Snapshot.ResourceSlot
	if res.DisplaySlot == nil {
		slot, err := s.repo.LastKnownResourceSlot(ctx, id.ServiceDate, id.ScheduledTime, id.Destination)
		if err != nil {
			return res, err
		}
		res.DisplaySlot = slot
	}
	return res, nil
}

// IngestAll обрабатывает все обновления, упавшие логирует и пропускает.
// В ошибку попадают только сбои хранилища; битые обновления
// считаются, но пачку не валят.
func (s *IngestService) IngestAll(ctx context.Context, raws []departure.RawUpdate) (IngestSummary, error) {
	sum := IngestSummary{Received: len(raws)}
	var errs []error

	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res, err := s.Ingest(ctx, raw)
		switch {
		case err == nil && res.Appended:
			sum.Appended++
		case err == nil:
			sum.Unchanged++
		case errors.Is(err, departure.ErrInvalidInput):
			sum.Failed++
			s.log.Warn("skipping invalid update", "index", i, "error", err)
		default:
			sum.Failed++
			errs = append(errs, err)
			s.log.Error("failed to ingest update", "index", i, "error", err)
		}
	}
	return sum, errors.Join(errs...)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
