package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/services/catalog"
)

// Catalog reads products and bundles from the tables maintained by the admin CRUD service.
type Catalog struct {
	db *sql.DB
}

func New(db *sql.DB) *Catalog { return &Catalog{db: db} }

func (c *Catalog) Product(ctx context.Context, id string) (catalog.Product, error) {
	var p catalog.Product
	err := c.db.QueryRowContext(ctx, `
		SELECT id, title, short_description, price_amount, currency, requires_invite, is_free, download_handle
		FROM product WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.ShortDescription, &p.Price, &p.Currency, &p.RequiresInvite, &p.IsFree, &p.DownloadHandle)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, fmt.Errorf("%w: product %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("%w: error querying product: %v", apperrors.ErrDatabase, err)
	}
	return p, nil
}

func (c *Catalog) Bundle(ctx context.Context, id string) (catalog.Bundle, error) {
	var b catalog.Bundle
	var productIDs pq.StringArray
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, description, price_amount, currency, product_ids
		FROM bundle WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.Description, &b.Price, &b.Currency, &productIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Bundle{}, fmt.Errorf("%w: bundle %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return catalog.Bundle{}, fmt.Errorf("%w: error querying bundle: %v", apperrors.ErrDatabase, err)
	}
	b.ProductIDs = []string(productIDs)
	return b, nil
}
