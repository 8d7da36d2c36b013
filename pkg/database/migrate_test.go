package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Shared cache so every pooled connection sees the same in-memory database.
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestNewMigrationLocker_NilDB(t *testing.T) {
	called := false
	err := NewMigrationLocker(nil).WithLock(context.Background(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTableMigrationLock_ReleasesAfterRun(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	err := locker.WithLock(context.Background(), func() error { return nil })
	require.NoError(t, err)

	var count int64
	db.Model(&migrationLockRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestTableMigrationLock_PropagatesError(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	want := errors.New("migration failed")
	err := locker.WithLock(context.Background(), func() error { return want })
	assert.ErrorIs(t, err, want)

	var count int64
	db.Model(&migrationLockRecord{}).Count(&count)
	assert.Zero(t, count, "lock must be released after a failed run")
}

func TestTableMigrationLock_ContextCanceled(t *testing.T) {
	db := setupTestDB(t)
	locker := &tableMigrationLock{db: db, retries: 100, retryInterval: 10 * time.Millisecond, staleAfter: time.Hour}
	require.NoError(t, db.AutoMigrate(&migrationLockRecord{}))
	require.NoError(t, db.Create(&migrationLockRecord{ID: "migration", LockedAt: time.Now(), LockedBy: "other"}).Error)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := locker.WithLock(ctx, func() error {
		t.Fatal("fn must not run while another holder owns the lock")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMigrate_CreatesTables(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Migrate(context.Background(), db, nil, &widget{}))
	assert.True(t, db.Migrator().HasTable(&widget{}))
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(Config{Driver: DriverSQLite}, nil)
	require.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	cfg.LogLevel = "silent"

	db, err := Open(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}
