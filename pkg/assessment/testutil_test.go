package assessment

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/csfprofile/profile-registry/pkg/audit"
)

// stepClock advances by step on every call so consecutive saves get
// strictly increasing timestamps.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

type testEnv struct {
	db      *gorm.DB
	changes *audit.ChangeLogStore
	current *CurrentStatePipeline
	target  *TargetStatePipeline
	clock   *stepClock
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, audit.NewChangeLogStore(db).AutoMigrate())
	for _, m := range Models() {
		require.NoError(t, db.AutoMigrate(m))
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	changes := audit.NewChangeLogStore(db)
	clock := &stepClock{t: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), step: time.Second}

	current := NewCurrentStatePipeline(NewCurrentStateStore(db, changes), nil, nil)
	current.now = clock.now
	target := NewTargetStatePipeline(NewTargetStateStore(db, changes), nil, nil)
	target.now = clock.now

	return &testEnv{db: db, changes: changes, current: current, target: target, clock: clock}
}

func (e *testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func (e *testEnv) changeLog(t *testing.T) []audit.ChangeLogEntry {
	t.Helper()
	var entries []audit.ChangeLogEntry
	require.NoError(t, e.db.Order("id ASC").Find(&entries).Error)
	return entries
}

func str(s string) *string { return &s }

func header(subcategoryID int64) PayloadHeader {
	return PayloadHeader{SubcategoryID: subcategoryID}
}
