package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	config "github.com/tbeaudouin05/stripe-storefront/api/config"
	database "github.com/tbeaudouin05/stripe-storefront/api/database"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
	invitedb "github.com/tbeaudouin05/stripe-storefront/api/services/invite/db"
)

const testProduct = "db-test-product"

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in -short mode")
	}
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	if cfg.DatabaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	// Prevent tests from running against production database
	config.CheckNotProdDB()
	config.AppConfig = cfg
	require.NoError(t, database.Initialize())
	db := database.GetDB()
	cleanup := func() { _, _ = db.Exec("DELETE FROM invite_status WHERE product_id = $1", testProduct) }
	cleanup()
	t.Cleanup(cleanup)
	return db
}

func TestStore_Lifecycle(t *testing.T) {
	store := invitedb.NewStore(setupTestDB(t))
	ctx := context.Background()
	buyer := identity.MustParse("db-test-buyer")
	key := inviteapp.Key{ProductID: testProduct, OrderID: "order_1", Buyer: buyer}
	created := time.UnixMilli(1_700_000_000_123).UTC()

	rec := inviteapp.Record{Key: key, Username: "trader1", Status: inviteapp.StatusPending, CreatedAt: created}
	require.NoError(t, store.Insert(ctx, rec))
	assert.ErrorIs(t, store.Insert(ctx, rec), apperrors.ErrAlreadyExists)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	updated, err := store.UpdateStatus(ctx, key, inviteapp.StatusGranted)
	require.NoError(t, err)
	assert.Equal(t, inviteapp.StatusGranted, updated.Status)
	assert.Equal(t, "trader1", updated.Username)

	missing := inviteapp.Key{ProductID: testProduct, OrderID: "nope", Buyer: buyer}
	_, err = store.UpdateStatus(ctx, missing, inviteapp.StatusGranted)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = store.Get(ctx, missing)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	older := inviteapp.Record{Key: inviteapp.Key{ProductID: testProduct, OrderID: "order_0", Buyer: buyer}, Username: "trader1", Status: inviteapp.StatusPending, CreatedAt: created.Add(-time.Hour)}
	other := inviteapp.Record{Key: inviteapp.Key{ProductID: testProduct, OrderID: "order_2", Buyer: identity.MustParse("db-test-other")}, Username: "x", Status: inviteapp.StatusPending, CreatedAt: created}
	require.NoError(t, store.Insert(ctx, older))
	require.NoError(t, store.Insert(ctx, other))

	mine, err := store.ListByProductAndBuyer(ctx, testProduct, buyer)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "order_1", mine[0].OrderID)
	assert.Equal(t, "order_0", mine[1].OrderID)
}
