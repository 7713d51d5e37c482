package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/Leganyst/platform-tracker/internal/calendar"
	"github.com/Leganyst/platform-tracker/internal/departure"
)

// snapshots
// Строки только добавляются; удаляет их лишь ретеншн.
type Snapshot struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// Дата рейса в таймзоне трекера, хранится как datatypes.Date
	ServiceDate datatypes.Date `gorm:"not null;index:idx_snapshots_identity,priority:1;index:idx_snapshots_date_effective,priority:1" json:"-"`
	DayOfWeek   string         `gorm:"type:varchar(16);not null;index:idx_snapshots_recurring,priority:1" json:"day_of_week"`
	Destination string         `gorm:"type:varchar(64);not null;default:'';index:idx_snapshots_identity,priority:2;index:idx_snapshots_recurring,priority:3" json:"destination"`

	// HH:MM, по нему же ищем рейс по времени.
	ScheduledTime string  `gorm:"type:varchar(5);not null;index:idx_snapshots_scheduled_time;index:idx_snapshots_identity,priority:3;index:idx_snapshots_recurring,priority:2" json:"scheduled_time"`
	EstimatedTime *string `gorm:"type:varchar(32)" json:"estimated_time"`
	EffectiveTime string  `gorm:"type:varchar(5);not null;index:idx_snapshots_date_effective,priority:2" json:"effective_time"`

	ResourceSlot       *string `gorm:"type:varchar(16)" json:"resource_slot"`
	Provider           *string `gorm:"type:varchar(255)" json:"provider"`
	IsCancelled        bool    `gorm:"not null;default:false" json:"is_cancelled"`
	CancellationReason *string `gorm:"type:text" json:"cancellation_reason"`

	CapturedAt time.Time `gorm:"not null;index:idx_snapshots_captured_at;index:idx_snapshots_identity,priority:4" json:"captured_at"`
}

// NewSnapshot собирает несохранённую строку.
func NewSnapshot(id departure.Identity, st departure.State) *Snapshot {
	return &Snapshot{
		ServiceDate:        datatypes.Date(id.ServiceDate),
		DayOfWeek:          id.DayOfWeek,
		Destination:        id.Destination,
		ScheduledTime:      id.ScheduledTime,
		EstimatedTime:      st.EstimatedTime,
		EffectiveTime:      st.EffectiveTime,
		ResourceSlot:       st.ResourceSlot,
		Provider:           st.Provider,
		IsCancelled:        st.IsCancelled,
		CancellationReason: st.CancellationReason,
	}
}

// State возвращает поля, которые сравнивает детектор изменений.
func (s *Snapshot) State() departure.State {
	return departure.State{
		ResourceSlot:       s.ResourceSlot,
		Provider:           s.Provider,
		IsCancelled:        s.IsCancelled,
		CancellationReason: s.CancellationReason,
		EstimatedTime:      s.EstimatedTime,
		EffectiveTime:      s.EffectiveTime,
	}
}

// Дата рейса в виде YYYY-MM-DD.
func (s *Snapshot) ServiceDateISO() string {
	y, m, d := time.Time(s.ServiceDate).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(calendar.ISODate)
}

// В JSON дата рейса отдаётся как YYYY-MM-DD, а не timestamp.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type row Snapshot
	return json.Marshal(struct {
		row
		ServiceDate string `json:"service_date"`
	}{row: row(s), ServiceDate: s.ServiceDateISO()})
}
