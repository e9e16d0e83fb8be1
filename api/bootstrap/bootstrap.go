package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tbeaudouin05/stripe-storefront/api/config"
	"github.com/tbeaudouin05/stripe-storefront/api/database"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/services/access"
	"github.com/tbeaudouin05/stripe-storefront/api/services/access/assets"
	"github.com/tbeaudouin05/stripe-storefront/api/services/catalog"
	catalogdb "github.com/tbeaudouin05/stripe-storefront/api/services/catalog/db"
	"github.com/tbeaudouin05/stripe-storefront/api/services/fulfillment"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
	invitedb "github.com/tbeaudouin05/stripe-storefront/api/services/invite/db"
	"github.com/tbeaudouin05/stripe-storefront/api/services/invite/events"
	"github.com/tbeaudouin05/stripe-storefront/api/services/invite/memstore"
	stripeapp "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/app"
	"github.com/tbeaudouin05/stripe-storefront/api/services/stripe/cache"
	stripedb "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/db"
	stripegw "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/gateway/stripe"
)

// Services is the wired application graph shared by the HTTP router and the CLI.
type Services struct {
	Admins      identity.Authorizer
	Payments    stripeapp.Service
	Invites     inviteapp.Service
	Catalog     catalog.Catalog
	Fulfillment *fulfillment.Service
	Access      *access.Gate

	closers []func() error
}

// Close releases connections opened during Init.
func (s *Services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

var services *Services
var initOnce sync.Once
var initErr error

// Init initializes config, database, and third-party clients, and wires services.
func Init() error {
	// If services have already been injected (e.g., tests), do not override or init heavy deps.
	if services != nil {
		return nil
	}
	var err error
	if config.AppConfig == nil {
		config.AppConfig, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	s, err := Build(config.AppConfig)
	if err != nil {
		return err
	}
	services = s
	return nil
}

// Build wires every service from cfg. Optional backends fall back to in-process
// implementations when their settings are empty.
func Build(cfg *config.Config) (*Services, error) {
	s := &Services{Admins: identity.NewAdminSet(cfg.AdminUserIDs...)}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		conn, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		s.closers = append(s.closers, conn.Close)
		if err := database.Migrate(conn); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db = conn
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory stores")
	}

	outcomes, err := outcomeCache(cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	var configs stripeapp.ConfigStore = stripeapp.NewMemoryConfigStore()
	var inviteStore inviteapp.Store = memstore.New()
	var purchases fulfillment.PurchaseStore = fulfillment.NewMemoryPurchases()
	if db != nil {
		configs = stripedb.NewConfigStore(db)
		inviteStore = invitedb.NewStore(db)
		purchases = fulfillment.NewPostgresPurchases(db)
	}

	gateway := stripegw.New(stripegw.WithBaseURL(cfg.StripeAPIURL), stripegw.WithTimeout(cfg.OutcallTimeout))
	s.Payments = stripeapp.NewService(gateway, configs, s.Admins,
		stripeapp.WithEnvironmentConfiguration(stripeapp.ProviderConfiguration{
			SecretKey:        cfg.StripeSecretKey,
			AllowedCountries: cfg.StripeAllowedCountries,
		}),
		stripeapp.WithOutcomeCache(outcomes, cfg.SessionCacheTTL),
	)

	var inviteOpts []inviteapp.Option
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaInviteTopic)
		s.closers = append(s.closers, pub.Close)
		inviteOpts = append(inviteOpts, inviteapp.WithPublisher(pub))
	}
	s.Invites = inviteapp.NewService(inviteStore, s.Admins, inviteOpts...)

	switch {
	case db != nil:
		s.Catalog = catalogdb.New(db)
	case cfg.CatalogFile != "":
		c, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Catalog = c
	default:
		s.Catalog = catalog.NewStatic(nil, nil)
	}

	s.Fulfillment = fulfillment.NewService(s.Payments, s.Invites, s.Catalog, purchases)

	var signer access.URLSigner
	if cfg.AssetBucket != "" {
		signer, err = assets.NewS3Signer(assets.Config{
			Bucket:    cfg.AssetBucket,
			Region:    cfg.AssetRegion,
			Endpoint:  cfg.AssetEndpoint,
			AccessKey: cfg.AssetAccessKey,
			SecretKey: cfg.AssetSecretKey,
			TTL:       cfg.AssetURLTTL,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
	}
	s.Access = access.NewGate(s.Invites, s.Fulfillment, signer)
	return s, nil
}

func outcomeCache(cfg *config.Config, s *Services) (stripeapp.OutcomeCache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(), nil
	}
	r, err := cache.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		r.Close()
		slog.Warn("redis unreachable, caching session outcomes in memory", "err", err)
		return cache.NewMemory(), nil
	}
	s.closers = append(s.closers, r.Close)
	return r, nil
}

// Get returns the wired services, or nil before Init.
func Get() *Services { return services }

// SetServices allows tests to inject stub implementations.
func SetServices(s *Services) { services = s }

// Ensure runs Init() once per process and returns any initialization error.
func Ensure() error {
	initOnce.Do(func() {
		initErr = Init()
	})
	return initErr
}
