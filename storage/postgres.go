package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bolig_scrooper/identity"
	"bolig_scrooper/models"
)

// PostgresStore is the export target for finished runs.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			property_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			fingerprint TEXT,
			url TEXT,
			address TEXT,
			postal_code TEXT,
			city TEXT,
			property_type TEXT,
			living_area NUMERIC,
			rooms NUMERIC,
			built_year INTEGER,
			price BIGINT,
			energy_label TEXT,
			details JSONB,
			scraped_at DATE,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS property_sales (
			property_id TEXT NOT NULL,
			sale_index INTEGER NOT NULL,
			sale_type TEXT,
			sale_date TEXT,
			price BIGINT,
			PRIMARY KEY (property_id, sale_index)
		);

		CREATE TABLE IF NOT EXISTS export_runs (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			kind TEXT NOT NULL,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			status TEXT,
			items_total INTEGER,
			items_ok INTEGER,
			items_failed INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_properties_fingerprint ON properties(fingerprint);
	`)
	return err
}

// =============================================================================
// Properties
// =============================================================================

// UpsertProperty writes rec. Typed columns are filled only from values
// that parse; everything else lives in details.
func (s *PostgresStore) UpsertProperty(ctx context.Context, source string, rec *models.PropertyRecord) error {
	details, err := json.Marshal(rec.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO properties (
			property_id, source, fingerprint, url, address, postal_code, city, property_type,
			living_area, rooms, built_year, price, energy_label, details, scraped_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW()
		)
		ON CONFLICT (property_id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			url = COALESCE(EXCLUDED.url, properties.url),
			address = COALESCE(EXCLUDED.address, properties.address),
			postal_code = COALESCE(EXCLUDED.postal_code, properties.postal_code),
			city = COALESCE(EXCLUDED.city, properties.city),
			property_type = COALESCE(EXCLUDED.property_type, properties.property_type),
			living_area = COALESCE(EXCLUDED.living_area, properties.living_area),
			rooms = COALESCE(EXCLUDED.rooms, properties.rooms),
			built_year = COALESCE(EXCLUDED.built_year, properties.built_year),
			price = COALESCE(EXCLUDED.price, properties.price),
			energy_label = COALESCE(EXCLUDED.energy_label, properties.energy_label),
			details = EXCLUDED.details,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = NOW()`

	_, err = s.pool.Exec(ctx, query,
		rec.ID, source, identity.Fingerprint(rec),
		textOrNil(rec, models.FieldURL), textOrNil(rec, models.FieldAddress),
		textOrNil(rec, models.FieldPostalCode), textOrNil(rec, models.FieldCity),
		textOrNil(rec, models.FieldPropertyType),
		numberOrNil(rec, models.FieldLivingArea), numberOrNil(rec, models.FieldRooms),
		intOrNil(rec, models.FieldBuiltYear), intOrNil(rec, models.FieldPrice),
		textOrNil(rec, models.FieldEnergyLabel), details, dateOrNil(rec, models.FieldScrapeDate),
	)
	return err
}

func (s *PostgresStore) GetProperty(ctx context.Context, propertyID string) (*models.PropertyRecord, error) {
	var details []byte
	err := s.pool.QueryRow(ctx, `SELECT details FROM properties WHERE property_id = $1`, propertyID).Scan(&details)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &models.PropertyRecord{ID: propertyID}
	if err := json.Unmarshal(details, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return rec, nil
}

// =============================================================================
// Sales
// =============================================================================

// ReplaceSales rewrites the sale history of one property in a single
// transaction. Placeholder sales are not stored.
func (s *PostgresStore) ReplaceSales(ctx context.Context, summary models.PropertySummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM property_sales WHERE property_id = $1`, summary.PropertyID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, sale := range summary.Sales {
		if sale.IsPlaceholder() {
			continue
		}
		var price *int64
		if sale.Price != nil {
			p := int64(*sale.Price)
			price = &p
		}
		batch.Queue(`
			INSERT INTO property_sales (property_id, sale_index, sale_type, sale_date, price)
			VALUES ($1, $2, $3, $4, $5)`,
			summary.PropertyID, i+1, sale.Type, sale.Date, price)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert sales: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// =============================================================================
// Export Runs
// =============================================================================

func (s *PostgresStore) RecordRun(ctx context.Context, run *models.ScrapeRun) error {
	id, err := uuid.Parse(run.UUID)
	if err != nil {
		return fmt.Errorf("run uuid: %w", err)
	}

	query := `
		INSERT INTO export_runs (id, source, kind, started_at, finished_at, status, items_total, items_ok, items_failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			items_total = EXCLUDED.items_total,
			items_ok = EXCLUDED.items_ok,
			items_failed = EXCLUDED.items_failed`

	_, err = s.pool.Exec(ctx, query,
		id, run.SiteID, string(run.Kind), run.StartedAt, run.FinishedAt, string(run.Status),
		run.ItemsTotal, run.ItemsOK, run.ItemsFailed,
	)
	return err
}

func textOrNil(rec *models.PropertyRecord, field string) *string {
	if !rec.Has(field) {
		return nil
	}
	v := rec.Get(field)
	return &v
}

func numberOrNil(rec *models.PropertyRecord, field string) *float64 {
	if !rec.Has(field) {
		return nil
	}
	f, err := strconv.ParseFloat(rec.Get(field), 64)
	if err != nil {
		return nil
	}
	return &f
}

func intOrNil(rec *models.PropertyRecord, field string) *int64 {
	f := numberOrNil(rec, field)
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}

func dateOrNil(rec *models.PropertyRecord, field string) *time.Time {
	if !rec.Has(field) {
		return nil
	}
	t, err := time.Parse("2006-01-02", rec.Get(field))
	if err != nil {
		return nil
	}
	return &t
}
