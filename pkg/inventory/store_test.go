package inventory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE locations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			deleted_at TIMESTAMP
		);

		CREATE TABLE items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER,
			location_id INTEGER,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			deleted_at TIMESTAMP
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestItemStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	locations := NewLocationStore(db)
	items := NewItemStore(db)

	shelf := &Location{Name: "Shelf A"}
	shelf.SetOrganizationID(1)
	require.NoError(t, locations.Insert(ctx, shelf))

	drill := &Item{Name: "Drill", SKU: "DR-1", Quantity: 4, LocationID: &shelf.ID}
	drill.SetOrganizationID(1)
	require.NoError(t, items.Insert(ctx, drill))
	assert.NotZero(t, drill.ID)

	saw := &Item{Name: "Saw", Quantity: 1}
	saw.SetOrganizationID(2)
	require.NoError(t, items.Insert(ctx, saw))

	inOrg1, err := items.Select(ctx, items.Query().Where(sq.Eq{"organization_id": int64(1)}))
	require.NoError(t, err)
	require.Len(t, inOrg1, 1)
	assert.Equal(t, "Drill", inOrg1[0].Name)
	require.NotNil(t, inOrg1[0].LocationID)
	assert.Equal(t, shelf.ID, *inOrg1[0].LocationID)

	drill.Quantity = 9
	require.NoError(t, items.Update(ctx, drill))

	got, err := items.Select(ctx, items.Query().Where(sq.Eq{"id": drill.ID}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Quantity)

	require.NoError(t, items.Delete(ctx, drill))
	assert.NotNil(t, drill.DeletedAt)

	all, err := items.Select(ctx, items.Query())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, saw.ID, all[0].ID)

	err = items.Update(ctx, drill)
	assert.True(t, errors.Is(err, ErrItemNotFound))
}

func TestLocationStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewLocationStore(db)

	loc := &Location{Name: "Back room", Address: "1 Main St"}
	loc.SetOrganizationID(3)
	require.NoError(t, store.Insert(ctx, loc))

	loc.Name = "Front room"
	require.NoError(t, store.Update(ctx, loc))

	got, err := store.Select(ctx, store.Query())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Front room", got[0].Name)
	require.NotNil(t, got[0].OrganizationID)
	assert.Equal(t, int64(3), *got[0].OrganizationID)

	require.NoError(t, store.Delete(ctx, loc))
	got, err = store.Select(ctx, store.Query())
	require.NoError(t, err)
	assert.Empty(t, got)

	err = store.Update(ctx, loc)
	assert.True(t, errors.Is(err, ErrLocationNotFound))
}

func TestRecordAccessors(t *testing.T) {
	item := &Item{ID: 5}
	assert.Nil(t, item.GetOrganizationID())
	item.SetOrganizationID(2)
	assert.Equal(t, int64(2), *item.GetOrganizationID())
	assert.Equal(t, "items", item.ResourceName())
	assert.Equal(t, "item", item.EntityType())

	loc := &Location{}
	assert.Equal(t, "locations", loc.ResourceName())
	assert.Equal(t, "location", loc.EntityType())
}
