package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"lista-precios/internal/catalog"
	"lista-precios/internal/config"
	"lista-precios/internal/pricing"
	"lista-precios/pkg/redis"
)

const productsCacheKey = "products:all"

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("storage: not found")

// PricingSettings is the persisted slice of the pricing configuration: the
// global margin and the ordered rule list. The dollar rate is not stored
// here; it lives with the rate watcher.
type PricingSettings struct {
	ProfitMargin float64
	ProfitRules  []pricing.ProfitRule
}

type PostgresStorage struct {
	db     *sqlx.DB
	cache  *redis.Client
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, cfg config.Database, cache *redis.Client, logger *zap.Logger) (*PostgresStorage, error) {
	const operation = "storage.NewPostgresStorage"

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
	)

	var db *sqlx.DB
	var err error

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 2 * time.Minute
	retryPolicy.MaxInterval = 15 * time.Second

	logger.Info("Connecting to PostgreSQL...")

	err = backoff.RetryNotify(
		func() error {
			db, err = sqlx.ConnectContext(ctx, "postgres", connStr)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			if err = db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
		retryPolicy,
		func(err error, duration time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", duration))
		},
	)

	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect after retries: %w", operation, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("Successfully connected to PostgreSQL")
	return &PostgresStorage{
		db:     db,
		cache:  cache,
		logger: logger,
	}, nil
}

func (s *PostgresStorage) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("failed to close database", zap.Error(err))
	}
}

// DB exposes the underlying handle for the migrator.
func (s *PostgresStorage) DB() *sql.DB {
	return s.db.DB
}

// ListProducts returns the whole catalog in insertion order, through the
// redis cache when warm.
func (s *PostgresStorage) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	if s.cache != nil {
		var cached []catalog.Product
		if err := s.cache.GetJSON(ctx, productsCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	const query = `SELECT id, name, price_usd, category FROM products ORDER BY id`

	products := []catalog.Product{}
	if err := s.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, productsCacheKey, products); err != nil {
			s.logger.Warn("failed to cache product list", zap.Error(err))
		}
	}
	return products, nil
}

// MaxProductID returns the highest id ever assigned, 0 for an empty
// catalog. The importer mints new ids strictly above it.
func (s *PostgresStorage) MaxProductID(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(MAX(id), 0) FROM products`

	var maxID int64
	if err := s.db.GetContext(ctx, &maxID, query); err != nil {
		return 0, fmt.Errorf("failed to get max product id: %w", err)
	}
	return maxID, nil
}

// AppendProducts inserts the batch in one transaction; import is additive,
// existing rows are never touched.
func (s *PostgresStorage) AppendProducts(ctx context.Context, products []catalog.Product) error {
	const operation = "storage.AppendProducts"

	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", operation, err)
	}
	defer tx.Rollback()

	const query = `
        INSERT INTO products (id, name, price_usd, category)
        VALUES (:id, :name, :price_usd, :category)
    `
	for _, p := range products {
		if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
			return fmt.Errorf("%s: insert product %d: %w", operation, p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", operation, err)
	}

	s.invalidateProducts(ctx)
	return nil
}

// DeleteProduct removes one product. Returns ErrNotFound for unknown ids.
func (s *PostgresStorage) DeleteProduct(ctx context.Context, id int64) error {
	const query = `DELETE FROM products WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	s.invalidateProducts(ctx)
	return nil
}

// DeleteAllProducts empties the catalog. Ids are not reset: the max id is
// gone with the rows, and a fresh catalog may reuse the sequence from 1,
// matching the original tool's behavior.
func (s *PostgresStorage) DeleteAllProducts(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}
	s.invalidateProducts(ctx)
	return nil
}

func (s *PostgresStorage) invalidateProducts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, productsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate product cache", zap.Error(err))
	}
}

// GetPricingSettings reads the single configuration row.
func (s *PostgresStorage) GetPricingSettings(ctx context.Context) (PricingSettings, error) {
	const query = `SELECT profit_margin, profit_rules FROM pricing_config WHERE id = 1`

	var row struct {
		ProfitMargin float64 `db:"profit_margin"`
		ProfitRules  []byte  `db:"profit_rules"`
	}
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PricingSettings{}, fmt.Errorf("pricing config row missing: %w", ErrNotFound)
		}
		return PricingSettings{}, fmt.Errorf("failed to get pricing config: %w", err)
	}

	settings := PricingSettings{ProfitMargin: row.ProfitMargin, ProfitRules: []pricing.ProfitRule{}}
	if err := json.Unmarshal(row.ProfitRules, &settings.ProfitRules); err != nil {
		return PricingSettings{}, fmt.Errorf("failed to decode profit rules: %w", err)
	}
	return settings, nil
}

// SavePricingSettings replaces the configuration row as a whole; the rule
// list has replacement semantics, there is no partial patch of rules.
func (s *PostgresStorage) SavePricingSettings(ctx context.Context, settings PricingSettings) error {
	const operation = "storage.SavePricingSettings"

	rules := settings.ProfitRules
	if rules == nil {
		rules = []pricing.ProfitRule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("%s: encode rules: %w", operation, err)
	}

	const query = `
        INSERT INTO pricing_config (id, profit_margin, profit_rules, updated_at)
        VALUES (1, $1, $2, now())
        ON CONFLICT (id) DO UPDATE
        SET profit_margin = EXCLUDED.profit_margin,
            profit_rules  = EXCLUDED.profit_rules,
            updated_at    = now()
    `
	if _, err := s.db.ExecContext(ctx, query, settings.ProfitMargin, data); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
