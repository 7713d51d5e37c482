package model

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/platform-tracker/internal/db/dbtest"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMigrate_AppliesAllStepsOnce(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, Migrate(db, quietLog))

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Equal(t, Migrations[len(Migrations)-1].Version, version)

	var count int64
	require.NoError(t, db.Model(&SchemaMigration{}).Count(&count).Error)
	require.Equal(t, int64(len(Migrations)), count)

	// Second run is a no-op.
	require.NoError(t, Migrate(db, quietLog))
	require.NoError(t, db.Model(&SchemaMigration{}).Count(&count).Error)
	require.Equal(t, int64(len(Migrations)), count)
}

func TestMigrate_ResultingSchema(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, Migrate(db, quietLog))

	m := db.Migrator()
	for _, col := range []string{"ServiceDate", "DayOfWeek", "Destination", "ScheduledTime", "EstimatedTime",
		"EffectiveTime", "ResourceSlot", "Provider", "IsCancelled", "CancellationReason", "CapturedAt"} {
		require.True(t, m.HasColumn(&Snapshot{}, col), col)
	}
	for _, idx := range []string{"idx_snapshots_scheduled_time", "idx_snapshots_date_effective",
		"idx_snapshots_identity", "idx_snapshots_recurring", "idx_snapshots_captured_at"} {
		require.True(t, m.HasIndex(&Snapshot{}, idx), idx)
	}

	slot := "4"
	row := &Snapshot{
		ServiceDate:   datatypes.Date(time.Date(2025, 9, 22, 0, 0, 0, 0, time.UTC)),
		DayOfWeek:     "Monday",
		Destination:   "TLH",
		ScheduledTime: "14:45",
		EffectiveTime: "14:45",
		ResourceSlot:  &slot,
		CapturedAt:    time.Date(2025, 9, 22, 14, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(row).Error)
	require.NotZero(t, row.ID)

	var got Snapshot
	require.NoError(t, db.First(&got, row.ID).Error)
	require.Equal(t, "2025-09-22", got.ServiceDateISO())
	require.Equal(t, "4", *got.ResourceSlot)
	require.False(t, got.IsCancelled)
}

func TestMigrate_EachStepIsIdempotent(t *testing.T) {
	for i, step := range Migrations {
		t.Run(step.Name, func(t *testing.T) {
			db := dbtest.Open(t)

			// Bring the schema to just before this step.
			for _, prev := range Migrations[:i] {
				require.NoError(t, prev.Up(db))
			}

			require.NoError(t, step.Up(db))
			require.NoError(t, step.Up(db), "second run must be a no-op")
		})
	}
}

func TestMigrate_StepByStepShapes(t *testing.T) {
	db := dbtest.Open(t)
	m := db.Migrator()

	require.NoError(t, createSnapshots(db))
	require.True(t, m.HasTable("snapshots"))
	require.False(t, m.HasColumn(&Snapshot{}, "IsCancelled"))
	require.False(t, m.HasColumn(&Snapshot{}, "Destination"))

	require.NoError(t, addCancellationColumns(db))
	require.True(t, m.HasColumn(&Snapshot{}, "IsCancelled"))
	require.True(t, m.HasColumn(&Snapshot{}, "CancellationReason"))

	require.NoError(t, addDestinationColumn(db))
	require.True(t, m.HasColumn(&Snapshot{}, "Destination"))
	require.False(t, m.HasIndex(&Snapshot{}, "idx_snapshots_identity"))

	require.NoError(t, createSnapshotIndexes(db))
	require.True(t, m.HasIndex(&Snapshot{}, "idx_snapshots_identity"))
}

func TestMigrate_AdoptsLegacyDatabase(t *testing.T) {
	db := dbtest.Open(t)

	// A database created before versioning: base table plus destination,
	// no migration records.
	require.NoError(t, createSnapshots(db))
	require.NoError(t, addDestinationColumn(db))

	require.NoError(t, Migrate(db, quietLog))
	require.True(t, db.Migrator().HasColumn(&Snapshot{}, "IsCancelled"))

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Equal(t, 4, version)
}

func TestMigrate_FailedStepIsNotRecorded(t *testing.T) {
	db := dbtest.Open(t)

	steps := []Migration{
		{Version: 1, Name: "ok", Up: createSnapshots},
		{Version: 2, Name: "broken", Up: func(tx *gorm.DB) error {
			return tx.Exec("CREAT TABLE nope (id INT)").Error
		}},
	}
	require.Error(t, migrate(db, quietLog, steps))

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Equal(t, 1, version)
}

func TestMigrate_RejectsOutOfOrderSteps(t *testing.T) {
	db := dbtest.Open(t)

	steps := []Migration{
		{Version: 2, Name: "second", Up: createSnapshots},
		{Version: 1, Name: "first", Up: createSnapshots},
	}
	require.Error(t, migrate(db, quietLog, steps))
}

func TestSchemaVersion_EmptyDatabase(t *testing.T) {
	db := dbtest.Open(t)

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Zero(t, version)
}
