package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	config "github.com/tbeaudouin05/stripe-storefront/api/config"
	database "github.com/tbeaudouin05/stripe-storefront/api/database"
	catalogdb "github.com/tbeaudouin05/stripe-storefront/api/services/catalog/db"
)

func TestCatalog_ReadsRows(t *testing.T) {
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

	cleanup := func() {
		_, _ = db.Exec("DELETE FROM product WHERE id = 'db-test-prod'")
		_, _ = db.Exec("DELETE FROM bundle WHERE id = 'db-test-bundle'")
	}
	cleanup()
	defer cleanup()

	_, err = db.Exec(`INSERT INTO product (id, title, price_amount, currency, requires_invite) VALUES ('db-test-prod', 'Indicator', 2000, 'usd', TRUE)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO bundle (id, name, price_amount, currency, product_ids) VALUES ('db-test-bundle', 'All', 2500, 'usd', '{db-test-prod}')`)
	require.NoError(t, err)

	c := catalogdb.New(db)
	ctx := context.Background()

	p, err := c.Product(ctx, "db-test-prod")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), p.Price)
	assert.True(t, p.RequiresInvite)

	b, err := c.Bundle(ctx, "db-test-bundle")
	require.NoError(t, err)
	assert.Equal(t, []string{"db-test-prod"}, b.ProductIDs)

	_, err = c.Product(ctx, "db-test-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
