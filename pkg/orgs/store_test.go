package orgs

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
		CREATE TABLE plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			tier TEXT NOT NULL DEFAULT 'free',
			max_items INTEGER NOT NULL DEFAULT 0,
			max_locations INTEGER NOT NULL DEFAULT 0,
			price_cents_monthly INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);

		CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			plan_id INTEGER,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			deleted_at TIMESTAMP
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple name", input: "Acme", expected: "acme"},
		{name: "name with spaces", input: "Acme Warehouses", expected: "acme-warehouses"},
		{name: "name with special chars", input: "Acme-Depot-12", expected: "acme-depot-12"},
		{name: "name with invalid chars", input: "Acme@Depot!", expected: "acmedepot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateSlug(tt.input))
		})
	}
}

func TestOrganization_OrganizationID(t *testing.T) {
	org := &Organization{}
	assert.Nil(t, org.GetOrganizationID())

	org.ID = 7
	require.NotNil(t, org.GetOrganizationID())
	assert.Equal(t, int64(7), *org.GetOrganizationID())
	assert.Equal(t, "organizations", org.ResourceName())

	plan := &Plan{ID: 3}
	assert.Nil(t, plan.GetOrganizationID())
	assert.Equal(t, "plans", plan.ResourceName())
}

func TestOrganizationStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewOrganizationStore(db)
	ctx := context.Background()

	acme := &Organization{Name: "Acme Warehouses"}
	require.NoError(t, store.Insert(ctx, acme))
	assert.NotZero(t, acme.ID)
	assert.Equal(t, "acme-warehouses", acme.Slug)
	assert.Equal(t, OrgStatusActive, acme.Status)

	globex := &Organization{Name: "Globex", Slug: "globex"}
	require.NoError(t, store.Insert(ctx, globex))

	got, err := store.GetOrganization(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Warehouses", got.Name)
	assert.Nil(t, got.PlanID)

	got.Status = OrgStatusSuspended
	require.NoError(t, store.Update(ctx, got))

	suspended, err := store.Select(ctx, store.Query().Where(sq.Eq{"status": "suspended"}))
	require.NoError(t, err)
	require.Len(t, suspended, 1)
	assert.Equal(t, acme.ID, suspended[0].ID)

	require.NoError(t, store.Delete(ctx, globex))
	_, err = store.GetOrganization(ctx, globex.ID)
	assert.True(t, errors.Is(err, ErrOrganizationNotFound))

	err = store.Update(ctx, globex)
	assert.True(t, errors.Is(err, ErrOrganizationNotFound))
}

func TestPlanStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewPlanStore(db)
	ctx := context.Background()

	plan := &Plan{Name: "Starter", MaxItems: 100, MaxLocations: 2}
	require.NoError(t, store.Insert(ctx, plan))
	assert.Equal(t, PlanFree, plan.Tier)

	plan.Tier = PlanPro
	plan.PriceCentsMonthly = 4900
	require.NoError(t, store.Update(ctx, plan))

	plans, err := store.Select(ctx, store.Query())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, PlanPro, plans[0].Tier)
	assert.Equal(t, int64(4900), plans[0].PriceCentsMonthly)

	require.NoError(t, store.Delete(ctx, plan))
	plans, err = store.Select(ctx, store.Query())
	require.NoError(t, err)
	assert.Empty(t, plans)

	err = store.Update(ctx, plan)
	assert.True(t, errors.Is(err, ErrPlanNotFound))
}
