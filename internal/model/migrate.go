package model

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// schema_migrations
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"type:varchar(128);not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// Migration описывает один шаг изменения схемы. Up должен спокойно отрабатывать на базе,
// где изменение уже есть: так подхватываются базы, созданные до версионирования.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// Все шаги схемы в порядке применения.
var Migrations = []Migration{
	{Version: 1, Name: "create_snapshots", Up: createSnapshots},
	{Version: 2, Name: "add_cancellation_columns", Up: addCancellationColumns},
	{Version: 3, Name: "add_destination_column", Up: addDestinationColumn},
	{Version: 4, Name: "create_snapshot_indexes", Up: createSnapshotIndexes},
}

// Migrate доводит схему до актуальной. Каждый шаг идёт в своей транзакции
// вместе с записью в schema_migrations.
func Migrate(db *gorm.DB, log *slog.Logger) error {
	return migrate(db, log, Migrations)
}

func migrate(db *gorm.DB, log *slog.Logger, steps []Migration) error {
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	var applied []SchemaMigration
	if err := db.Find(&applied).Error; err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	last := 0
	for _, step := range steps {
		if step.Version <= last {
			return fmt.Errorf("migration %d (%s) is out of order", step.Version, step.Name)
		}
		last = step.Version

		if done[step.Version] {
			continue
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := step.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   step.Version,
				Name:      step.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", step.Version, step.Name, err)
		}
		log.Info("applied schema migration", "version", step.Version, "name", step.Name)
	}
	return nil
}

// SchemaVersion возвращает последнюю применённую версию, 0 если миграций не было.
func SchemaVersion(db *gorm.DB) (int, error) {
	if !db.Migrator().HasTable(&SchemaMigration{}) {
		return 0, nil
	}
	var version int
	row := db.Model(&SchemaMigration{}).Select("COALESCE(MAX(version), 0)").Row()
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// snapshotV1 фиксирует исходную форму таблицы snapshots. Не менять:
// новые колонки добавляются отдельными шагами.
type snapshotV1 struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	ServiceDate   datatypes.Date `gorm:"not null"`
	DayOfWeek     string         `gorm:"type:varchar(16);not null"`
	ScheduledTime string         `gorm:"type:varchar(5);not null"`
	EstimatedTime *string        `gorm:"type:varchar(32)"`
	EffectiveTime string         `gorm:"type:varchar(5);not null"`
	ResourceSlot  *string        `gorm:"type:varchar(16)"`
	Provider      *string        `gorm:"type:varchar(255)"`
	CapturedAt    time.Time      `gorm:"not null"`
}

func (snapshotV1) TableName() string { return "snapshots" }

func createSnapshots(tx *gorm.DB) error {
	if tx.Migrator().HasTable(&Snapshot{}) {
		return nil
	}
	return tx.Migrator().CreateTable(&snapshotV1{})
}

func addCancellationColumns(tx *gorm.DB) error {
	return addColumns(tx, "IsCancelled", "CancellationReason")
}

func addDestinationColumn(tx *gorm.DB) error {
	return addColumns(tx, "Destination")
}

func createSnapshotIndexes(tx *gorm.DB) error {
	for _, name := range []string{
		"idx_snapshots_scheduled_time",
		"idx_snapshots_date_effective",
		"idx_snapshots_identity",
		"idx_snapshots_recurring",
		"idx_snapshots_captured_at",
	} {
		if tx.Migrator().HasIndex(&Snapshot{}, name) {
			continue
		}
		if err := tx.Migrator().CreateIndex(&Snapshot{}, name); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}

func addColumns(tx *gorm.DB, fields ...string) error {
	for _, f := range fields {
		if tx.Migrator().HasColumn(&Snapshot{}, f) {
			continue
		}
		if err := tx.Migrator().AddColumn(&Snapshot{}, f); err != nil {
			return fmt.Errorf("add column %s: %w", f, err)
		}
	}
	return nil
}
