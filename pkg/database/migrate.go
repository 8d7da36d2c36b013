package database

import (
	"context"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"
)

// MigrationLocker serializes table creation across replicas that start at
// the same time.
type MigrationLocker interface {
	// WithLock executes fn while holding the migration lock.
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker picks a lock strategy for the database dialect.
// PostgreSQL uses an advisory lock; other databases use a lock table.
func NewMigrationLocker(db *gorm.DB) MigrationLocker {
	if db == nil {
		return noopMigrationLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &pgAdvisoryLock{
			db:     db,
			lockID: int64(crc32.ChecksumIEEE([]byte("profile-registry-migration"))),
		}
	}
	lock := &tableMigrationLock{
		db:            db,
		retries:       30,
		retryInterval: time.Second,
		staleAfter:    5 * time.Minute,
	}
	// Create the lock table up front so the first WithLock never races on it.
	_ = db.AutoMigrate(&migrationLockRecord{})
	return lock
}

type noopMigrationLock struct{}

func (noopMigrationLock) WithLock(_ context.Context, fn func() error) error {
	return fn()
}

type pgAdvisoryLock struct {
	db     *gorm.DB
	lockID int64
}

// WithLock pins one pooled connection because advisory locks belong to the
// session that took them.
func (l *pgAdvisoryLock) WithLock(ctx context.Context, fn func() error) error {
	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SELECT pg_advisory_lock(?)", l.lockID).Error; err != nil {
			return fmt.Errorf("acquire migration advisory lock: %w", err)
		}
		defer func() {
			_ = conn.Exec("SELECT pg_advisory_unlock(?)", l.lockID).Error
		}()
		return fn()
	})
}

// migrationLockRecord is the single lock row used on SQLite and MySQL.
type migrationLockRecord struct {
	ID       string    `gorm:"primaryKey;column:id"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (migrationLockRecord) TableName() string { return "migration_lock" }

// tableMigrationLock relies on the primary key to admit one holder at a
// time. Rows older than staleAfter are treated as left behind by a crash.
type tableMigrationLock struct {
	db            *gorm.DB
	retries       int
	retryInterval time.Duration
	staleAfter    time.Duration
}

func (l *tableMigrationLock) WithLock(ctx context.Context, fn func() error) error {
	holder, _ := os.Hostname()
	if holder == "" {
		holder = "unknown"
	}

	var lastErr error
	for i := 0; i < l.retries; i++ {
		l.db.WithContext(ctx).
			Where("id = ? AND locked_at < ?", "migration", time.Now().Add(-l.staleAfter)).
			Delete(&migrationLockRecord{})

		row := migrationLockRecord{ID: "migration", LockedAt: time.Now(), LockedBy: holder}
		if lastErr = l.db.WithContext(ctx).Create(&row).Error; lastErr == nil {
			defer l.db.Where("id = ?", "migration").Delete(&migrationLockRecord{})
			return fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
	return fmt.Errorf("acquire migration lock after %d attempts: %w", l.retries, lastErr)
}

// Migrate creates or updates the tables for models while holding the
// migration lock.
func Migrate(ctx context.Context, db *gorm.DB, log *slog.Logger, models ...any) error {
	if log == nil {
		log = slog.Default()
	}
	locker := NewMigrationLocker(db)
	return locker.WithLock(ctx, func() error {
		for _, m := range models {
			if err := db.WithContext(ctx).AutoMigrate(m); err != nil {
				return fmt.Errorf("auto-migrate %T: %w", m, err)
			}
		}
		log.Info("database tables are up to date", "models", len(models))
		return nil
	})
}
