package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csfprofile/profile-registry/pkg/audit"
)

func currentRow(subcategoryID int64, at time.Time, notes string) CurrentStateRecord {
	return CurrentStateRecord{
		RecordMeta: RecordMeta{SubcategoryID: subcategoryID, RegisteredAt: at, Revision: 1},
		Priority:   1,
		Level:      1,
		Notes:      str(notes),
	}
}

func TestGormStore_InsertManyAssignsIDs(t *testing.T) {
	db := setupTestDB(t)
	store := NewCurrentStateStore(db, audit.NewChangeLogStore(db))
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	rows := []CurrentStateRecord{currentRow(1, at, "a"), currentRow(2, at, "b")}
	require.NoError(t, store.InsertMany(context.Background(), rows))
	assert.NotZero(t, rows[0].ID)
	assert.Greater(t, rows[1].ID, rows[0].ID)

	require.NoError(t, store.InsertMany(context.Background(), nil))
}

func TestGormStore_InsertManyChunksStatements(t *testing.T) {
	db := setupTestDB(t)
	store := NewCurrentStateStore(db, audit.NewChangeLogStore(db))
	store.batchSize = 2
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	rows := make([]CurrentStateRecord, 5)
	for i := range rows {
		rows[i] = currentRow(int64(i+1), at, "n")
	}
	require.NoError(t, store.InsertMany(context.Background(), rows))

	seen := map[int64]bool{}
	for _, row := range rows {
		assert.NotZero(t, row.ID)
		seen[row.ID] = true
	}
	assert.Len(t, seen, 5)

	var n int64
	require.NoError(t, db.Model(&CurrentStateRecord{}).Count(&n).Error)
	assert.Equal(t, int64(5), n)
}

func TestGormStore_FindLatestOrdering(t *testing.T) {
	db := setupTestDB(t)
	store := NewCurrentStateStore(db, audit.NewChangeLogStore(db))
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Inserted out of timestamp order: the newest timestamp wins, not the
	// newest id.
	rows := []CurrentStateRecord{
		currentRow(5, t0.Add(2*time.Hour), "newest"),
		currentRow(5, t0, "oldest"),
		currentRow(5, t0.Add(time.Hour), "middle"),
	}
	require.NoError(t, store.InsertMany(ctx, rows))

	latest, err := store.FindLatest(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "newest", *latest.Notes)

	all, err := store.FindAllBySubcategory(ctx, 5)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "newest", *all[0].Notes)
	assert.Equal(t, "middle", *all[1].Notes)
	assert.Equal(t, "oldest", *all[2].Notes)

	none, err := store.FindLatest(ctx, 6)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGormStore_FindByIDMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewTargetStateStore(db, audit.NewChangeLogStore(db))

	row, err := store.FindByID(context.Background(), 12)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestGormStore_UpdateWithChanges(t *testing.T) {
	db := setupTestDB(t)
	changes := audit.NewChangeLogStore(db)
	store := NewCurrentStateStore(db, changes)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	rows := []CurrentStateRecord{currentRow(1, at, "before")}
	require.NoError(t, store.InsertMany(ctx, rows))
	id := rows[0].ID

	entry := audit.ChangeLogEntry{
		RecordID: id, RecordKind: audit.KindCurrent, SubcategoryID: 1,
		FieldName: "notes", OldValue: "before", NewValue: "after",
		Actor: "bob", ChangedAt: at.Add(time.Minute), ChangeSetID: "cs",
	}
	values := map[string]any{"notes": str("after"), "revision": int64(2), "registered_at": at.Add(time.Minute)}

	require.NoError(t, store.UpdateWithChanges(ctx, id, 1, values, []audit.ChangeLogEntry{entry}))
	got, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "after", *got.Notes)
	assert.Equal(t, int64(2), got.Revision)

	// Stale revision: nothing is written, the change log included.
	values["notes"] = (*string)(nil)
	err = store.UpdateWithChanges(ctx, id, 1, values, []audit.ChangeLogEntry{entry})
	assert.ErrorIs(t, err, ErrConflict)

	got, err = store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "after", *got.Notes)

	_, _, total, err := changes.List(ctx, audit.ChangeLogFilter{}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestGormStore_UpdateWithChangesClearsText(t *testing.T) {
	db := setupTestDB(t)
	store := NewCurrentStateStore(db, audit.NewChangeLogStore(db))
	ctx := context.Background()

	rows := []CurrentStateRecord{currentRow(1, time.Now().UTC(), "x")}
	require.NoError(t, store.InsertMany(ctx, rows))

	values := map[string]any{"notes": (*string)(nil), "revision": int64(2)}
	require.NoError(t, store.UpdateWithChanges(ctx, rows[0].ID, 1, values, nil))

	got, err := store.FindByID(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got.Notes)
}
