package fulfillment

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/tbeaudouin05/stripe-storefront/api/identity"
)

// PurchaseStore remembers which products a buyer paid for. Record is idempotent per session.
type PurchaseStore interface {
	Record(ctx context.Context, buyer identity.Principal, sessionID string, productIDs []string) error
	Has(ctx context.Context, buyer identity.Principal, productID string) (bool, error)
}

type purchaseKey struct {
	buyer     identity.Principal
	productID string
}

// MemoryPurchases is the in-process PurchaseStore.
type MemoryPurchases struct {
	mu    sync.RWMutex
	owned map[purchaseKey]map[string]struct{}
}

func NewMemoryPurchases() *MemoryPurchases {
	return &MemoryPurchases{owned: map[purchaseKey]map[string]struct{}{}}
}

func (m *MemoryPurchases) Record(_ context.Context, buyer identity.Principal, sessionID string, productIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range productIDs {
		k := purchaseKey{buyer: buyer, productID: id}
		if m.owned[k] == nil {
			m.owned[k] = map[string]struct{}{}
		}
		m.owned[k][sessionID] = struct{}{}
	}
	return nil
}

func (m *MemoryPurchases) Has(_ context.Context, buyer identity.Principal, productID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owned[purchaseKey{buyer: buyer, productID: productID}]) > 0, nil
}

// PostgresPurchases stores purchases in the purchase table.
type PostgresPurchases struct {
	db *sql.DB
}

func NewPostgresPurchases(db *sql.DB) *PostgresPurchases { return &PostgresPurchases{db: db} }

func (p *PostgresPurchases) Record(ctx context.Context, buyer identity.Principal, sessionID string, productIDs []string) error {
	now := time.Now().UnixMilli()
	for _, id := range productIDs {
		if _, err := p.db.ExecContext(ctx,
			`INSERT INTO purchase (buyer, product_id, session_id, created_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT DO NOTHING`,
			buyer.String(), id, sessionID, now,
		); err != nil {
			return fmt.Errorf("error inserting purchase: %w", err)
		}
	}
	return nil
}

func (p *PostgresPurchases) Has(ctx context.Context, buyer identity.Principal, productID string) (bool, error) {
	var ok bool
	err := p.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM purchase WHERE buyer = $1 AND product_id = $2)",
		buyer.String(), productID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("error querying purchase: %w", err)
	}
	return ok, nil
}
