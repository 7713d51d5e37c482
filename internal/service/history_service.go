package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Leganyst/platform-tracker/internal/calendar"
	"github.com/Leganyst/platform-tracker/internal/departure"
	"github.com/Leganyst/platform-tracker/internal/model"
	"github.com/Leganyst/platform-tracker/internal/repository"
)

// Последнее известное состояние рейса за день.
type CurrentDeparture struct {
	Snapshot    *model.Snapshot `json:"snapshot"`
	DisplaySlot *string         `json:"display_slot"`
	// true, если DisplaySlot взят из более раннего снапшота того же дня
	SlotFromHistory bool `json:"slot_from_history"`
}

// HistoryService отвечает на запросы по сохранённым снапшотам.
type HistoryService struct {
	repo     repository.SnapshotRepository
	resolver *departure.Resolver
}

func NewHistoryService(repo repository.SnapshotRepository, resolver *departure.Resolver) *HistoryService {
	return &HistoryService{repo: repo, resolver: resolver}
}

// PlatformDistribution считает по платформам прошедшие дни регулярного рейса,
// в которые она была последней известной. Сегодня не учитывается.
// Ввод валидируется до обращения к хранилищу.
func (s *HistoryService) PlatformDistribution(
	ctx context.Context,
	dayOfWeek, scheduledTime, destination string,
) ([]departure.SlotCount, error) {
	req := departure.DistributionRequest{
		DayOfWeek:     strings.TrimSpace(dayOfWeek),
		ScheduledTime: strings.TrimSpace(scheduledTime),
		Destination:   strings.TrimSpace(destination),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	clock, _ := calendar.NormalizeClock(req.ScheduledTime)
	if req.Destination == "" {
		req.Destination = s.resolver.DefaultDestination()
	}

	return s.repo.PlatformDistribution(ctx, departure.DistributionQuery{
		DayOfWeek:     req.DayOfWeek,
		ScheduledTime: clock,
		Destination:   req.Destination,
		ExcludeDate:   s.resolver.Today(),
	})
}

// AllDistributions: PlatformDistribution по всем регулярным рейсам.
func (s *HistoryService) AllDistributions(ctx context.Context) ([]departure.RecurringDistribution, error) {
	return s.repo.AllDistributions(ctx, s.resolver.Today())
}

func (s *HistoryService) RecurringEvents(ctx context.Context) ([]departure.RecurringEvent, error) {
	return s.repo.ListRecurringEvents(ctx)
}

func (s *HistoryService) Recent(ctx context.Context, limit int) ([]model.Snapshot, error) {
	return s.repo.Recent(ctx, limit)
}

// Current возвращает последний снапшот рейса scheduledTime на дату
// date (YYYY-MM-DD, пусто для сегодня). nil, если по нему ничего
// не записано.
func (s *HistoryService) Current(
	ctx context.Context,
	scheduledTime, destination, date string,
) (*CurrentDeparture, error) {
	clock, err := calendar.NormalizeClock(strings.TrimSpace(scheduledTime))
	if err != nil {
		return nil, fmt.Errorf("%w: scheduled_time: %v", departure.ErrValidation, err)
	}

	serviceDate := s.resolver.Today()
	if date = strings.TrimSpace(date); date != "" {
		serviceDate, err = calendar.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", departure.ErrValidation, date)
		}
	}

	destination = strings.TrimSpace(destination)
	if destination == "" {
		destination = s.resolver.DefaultDestination()
	}

	snap, err := s.repo.MostRecent(ctx, serviceDate, destination, clock)
	if err != nil || snap == nil {
		return nil, err
	}

	cur := &CurrentDeparture{Snapshot: snap, DisplaySlot: snap.ResourceSlot}
	if cur.DisplaySlot == nil {
		cur.DisplaySlot, err = s.repo.LastKnownResourceSlot(ctx, serviceDate, clock, destination)
		if err != nil {
			return nil, err
		}
		cur.SlotFromHistory = cur.DisplaySlot != nil
	}
	return cur, nil
}
