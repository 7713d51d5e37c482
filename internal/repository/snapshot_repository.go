package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/platform-tracker/internal/departure"
	"github.com/Leganyst/platform-tracker/internal/model"
)

type SnapshotRepository interface {
	// Добавить новый снапшот.
	Append(ctx context.Context, s *model.Snapshot) error
	// Последний снапшот рейса за день, nil если нет.
	MostRecent(ctx context.Context, serviceDate time.Time, destination, scheduledTime string) (*model.Snapshot, error)
	// Последняя непустая платформа рейса за день, nil если её не было.
	LastKnownResourceSlot(ctx context.Context, serviceDate time.Time, scheduledTime, destination string) (*string, error)
	// Свежие снапшоты первыми; при limit <= 0 отдаём все.
	Recent(ctx context.Context, limit int) ([]model.Snapshot, error)
	// Удалить снапшоты старше cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// Распределение платформ регулярного рейса, один голос на день.
	PlatformDistribution(ctx context.Context, q departure.DistributionQuery) ([]departure.SlotCount, error)
	// То же по всем регулярным рейсам.
	AllDistributions(ctx context.Context, excludeDate time.Time) ([]departure.RecurringDistribution, error)
	// Все встреченные регулярные рейсы.
	ListRecurringEvents(ctx context.Context) ([]departure.RecurringEvent, error)
}

type GormSnapshotRepository struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewGormSnapshotRepository(db *gorm.DB, clock clockwork.Clock) *GormSnapshotRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GormSnapshotRepository{db: db, clock: clock}
}

var errAlreadyPersisted = errors.New("snapshot already has an id")

func (r *GormSnapshotRepository) Append(ctx context.Context, s *model.Snapshot) error {
	if s.ID != 0 {
		return fmt.Errorf("append snapshot: %w: %w", departure.ErrInvalidInput, errAlreadyPersisted)
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = r.clock.Now()
	}
	s.CapturedAt = s.CapturedAt.UTC()

	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return storageErr("append snapshot", err)
	}
	return nil
}

func (r *GormSnapshotRepository) MostRecent(
	ctx context.Context,
	serviceDate time.Time,
	destination, scheduledTime string,
) (*model.Snapshot, error) {
	var rows []model.Snapshot
	err := r.instance(ctx, serviceDate, destination, scheduledTime).
		Order("captured_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("most recent snapshot", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *GormSnapshotRepository) LastKnownResourceSlot(
	ctx context.Context,
	serviceDate time.Time,
	scheduledTime, destination string,
) (*string, error) {
	var rows []model.Snapshot
	err := r.instance(ctx, serviceDate, destination, scheduledTime).
		Where("resource_slot IS NOT NULL").
		Order("captured_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("last known resource slot", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].ResourceSlot, nil
}

func (r *GormSnapshotRepository) Recent(ctx context.Context, limit int) ([]model.Snapshot, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Snapshot{}).
		Order("captured_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	rows := []model.Snapshot{}
	if err := q.Find(&rows).Error; err != nil {
		return nil, storageErr("recent snapshots", err)
	}
	return rows, nil
}

func (r *GormSnapshotRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("captured_at < ?", cutoff.UTC()).
		Delete(&model.Snapshot{})
	if res.Error != nil {
		return 0, storageErr("purge snapshots", res.Error)
	}
	return res.RowsAffected, nil
}

// Пустые платформы отбрасываются до ранжирования: день, где платформа пропала,
// считается по последней известной.
const platformDistributionSQL = `
SELECT resource_slot AS slot, COUNT(*) AS count
FROM (
	SELECT resource_slot,
		ROW_NUMBER() OVER (PARTITION BY service_date ORDER BY captured_at DESC, id DESC) AS rn
	FROM snapshots
	WHERE day_of_week = ?
		AND scheduled_time = ?
		AND destination = ?
		AND service_date <> ?
		AND resource_slot IS NOT NULL
) ranked
WHERE rn = 1
GROUP BY resource_slot`

func (r *GormSnapshotRepository) PlatformDistribution(
	ctx context.Context,
	q departure.DistributionQuery,
) ([]departure.SlotCount, error) {
	counts := []departure.SlotCount{}
	err := r.db.WithContext(ctx).
		Raw(platformDistributionSQL, q.DayOfWeek, q.ScheduledTime, q.Destination, dateValue(q.ExcludeDate)).
		Scan(&counts).Error
	if err != nil {
		return nil, storageErr("platform distribution", err)
	}
	departure.SortSlotCounts(counts)
	return counts, nil
}

const allDistributionsSQL = `
SELECT day_of_week, scheduled_time, destination, resource_slot AS slot, COUNT(*) AS count
FROM (
	SELECT day_of_week, scheduled_time, destination, resource_slot,
		ROW_NUMBER() OVER (
			PARTITION BY day_of_week, scheduled_time, destination, service_date
			ORDER BY captured_at DESC, id DESC
		) AS rn
	FROM snapshots
	WHERE service_date <> ?
		AND resource_slot IS NOT NULL
) ranked
WHERE rn = 1
GROUP BY day_of_week, scheduled_time, destination, resource_slot`

type recurringSlotRow struct {
	DayOfWeek     string
	ScheduledTime string
	Destination   string
	Slot          string
	Count         int
}

func (r *GormSnapshotRepository) AllDistributions(
	ctx context.Context,
	excludeDate time.Time,
) ([]departure.RecurringDistribution, error) {
	var rows []recurringSlotRow
	err := r.db.WithContext(ctx).
		Raw(allDistributionsSQL, dateValue(excludeDate)).
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("all distributions", err)
	}

	byEvent := make(map[departure.RecurringEvent]*departure.RecurringDistribution)
	for _, row := range rows {
		ev := departure.RecurringEvent{
			DayOfWeek:     row.DayOfWeek,
			ScheduledTime: row.ScheduledTime,
			Destination:   row.Destination,
		}
		d, ok := byEvent[ev]
		if !ok {
			d = &departure.RecurringDistribution{RecurringEvent: ev}
			byEvent[ev] = d
		}
		d.Slots = append(d.Slots, departure.SlotCount{Slot: row.Slot, Count: row.Count})
		d.TotalDays += row.Count
	}

	result := make([]departure.RecurringDistribution, 0, len(byEvent))
	for _, d := range byEvent {
		departure.SortSlotCounts(d.Slots)
		result = append(result, *d)
	}
	slices.SortFunc(result, func(a, b departure.RecurringDistribution) int {
		return departure.CompareRecurring(a.RecurringEvent, b.RecurringEvent)
	})
	return result, nil
}

func (r *GormSnapshotRepository) ListRecurringEvents(ctx context.Context) ([]departure.RecurringEvent, error) {
	events := []departure.RecurringEvent{}
	err := r.db.WithContext(ctx).
		Model(&model.Snapshot{}).
		Distinct("day_of_week", "scheduled_time", "destination").
		Scan(&events).Error
	if err != nil {
		return nil, storageErr("list recurring events", err)
	}
	slices.SortFunc(events, departure.CompareRecurring)
	return events, nil
}

// instance ограничивает запрос одним рейсом в конкретный день.
func (r *GormSnapshotRepository) instance(
	ctx context.Context,
	serviceDate time.Time,
	destination, scheduledTime string,
) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Snapshot{}).
		Where("service_date = ?", dateValue(serviceDate)).
		Where("destination = ?", destination).
		Where("scheduled_time = ?", scheduledTime)
}

// dateValue приводит t к полуночи UTC, как хранятся даты рейсов.
func dateValue(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, departure.ErrStorage, err)
}
