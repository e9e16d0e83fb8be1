package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	stripeapp "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/app"
)

// ConfigStore keeps the provider configuration in the singleton stripe_configuration row.
type ConfigStore struct {
	db *sql.DB
}

func NewConfigStore(db *sql.DB) *ConfigStore { return &ConfigStore{db: db} }

// Get returns the stored configuration; found is false when no row exists yet.
func (s *ConfigStore) Get(ctx context.Context) (stripeapp.ProviderConfiguration, bool, error) {
	var cfg stripeapp.ProviderConfiguration
	var countries pq.StringArray
	err := s.db.QueryRowContext(ctx,
		"SELECT secret_key, allowed_countries FROM stripe_configuration WHERE id = 1",
	).Scan(&cfg.SecretKey, &countries)
	if errors.Is(err, sql.ErrNoRows) {
		return stripeapp.ProviderConfiguration{}, false, nil
	}
	if err != nil {
		return stripeapp.ProviderConfiguration{}, false, fmt.Errorf("error querying stripe_configuration: %w", err)
	}
	cfg.AllowedCountries = []string(countries)
	return cfg, true, nil
}

// Save upserts the configuration row.
func (s *ConfigStore) Save(ctx context.Context, cfg stripeapp.ProviderConfiguration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stripe_configuration (id, secret_key, allowed_countries, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET secret_key = EXCLUDED.secret_key,
		    allowed_countries = EXCLUDED.allowed_countries,
		    updated_at = EXCLUDED.updated_at`,
		cfg.SecretKey, pq.Array(cfg.AllowedCountries), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("error upserting stripe_configuration: %w", err)
	}
	return nil
}
