package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
)

const uniqueViolation = "23505"

const selectColumns = "SELECT product_id, order_id, buyer, username, status, created_at FROM invite_status"

// Store is the PostgreSQL invite ledger. The primary key on (product_id, order_id, buyer)
// enforces key uniqueness; each method is a single statement.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Insert(ctx context.Context, r inviteapp.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invite_status (product_id, order_id, buyer, username, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ProductID, r.OrderID, r.Buyer.String(), r.Username, string(r.Status), r.CreatedAt.UnixMilli(),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: invite record %s", apperrors.ErrAlreadyExists, r.Key)
	}
	if err != nil {
		return fmt.Errorf("error inserting invite_status: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, k inviteapp.Key) (inviteapp.Record, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" WHERE product_id = $1 AND order_id = $2 AND buyer = $3",
		k.ProductID, k.OrderID, k.Buyer.String(),
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return inviteapp.Record{}, fmt.Errorf("%w: invite record %s", apperrors.ErrNotFound, k)
	}
	return r, err
}

func (s *Store) UpdateStatus(ctx context.Context, k inviteapp.Key, st inviteapp.Status) (inviteapp.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE invite_status SET status = $4
		 WHERE product_id = $1 AND order_id = $2 AND buyer = $3
		 RETURNING product_id, order_id, buyer, username, status, created_at`,
		k.ProductID, k.OrderID, k.Buyer.String(), string(st),
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return inviteapp.Record{}, fmt.Errorf("%w: invite record %s", apperrors.ErrNotFound, k)
	}
	return r, err
}

func (s *Store) List(ctx context.Context) ([]inviteapp.Record, error) {
	return s.query(ctx, selectColumns+" ORDER BY created_at DESC, product_id, order_id, buyer")
}

func (s *Store) ListByBuyer(ctx context.Context, buyer identity.Principal) ([]inviteapp.Record, error) {
	return s.query(ctx, selectColumns+" WHERE buyer = $1 ORDER BY created_at DESC, product_id, order_id", buyer.String())
}

func (s *Store) ListByProductAndBuyer(ctx context.Context, productID string, buyer identity.Principal) ([]inviteapp.Record, error) {
	return s.query(ctx, selectColumns+" WHERE product_id = $1 AND buyer = $2 ORDER BY created_at DESC, order_id", productID, buyer.String())
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]inviteapp.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying invite_status: %w", err)
	}
	defer rows.Close()

	var out []inviteapp.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite_status: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (inviteapp.Record, error) {
	var (
		r         inviteapp.Record
		buyer     string
		status    string
		createdAt int64
	)
	if err := sc.Scan(&r.ProductID, &r.OrderID, &buyer, &r.Username, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inviteapp.Record{}, err
		}
		return inviteapp.Record{}, fmt.Errorf("error scanning invite_status: %w", err)
	}
	p, err := identity.Parse(buyer)
	if err != nil {
		return inviteapp.Record{}, fmt.Errorf("invalid buyer in invite_status: %w", err)
	}
	st, err := inviteapp.ParseStatus(status)
	if err != nil {
		return inviteapp.Record{}, fmt.Errorf("invalid status in invite_status: %w", err)
	}
	r.Buyer = p
	r.Status = st
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	return r, nil
}
