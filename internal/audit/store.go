// Package audit persists per-call aggregates for compliance reporting. Rows
// carry counts and flags only, never entity spans, raw values, or text, so
// the store does not extend entity lifetime beyond the invocation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config contains database configuration. Auditing is opt-in.
type Config struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Record is one de-identification call, aggregate view only.
type Record struct {
	ID             int64     `db:"id" json:"id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Mode           string    `db:"mode" json:"mode"`
	Policy         string    `db:"policy" json:"policy"`
	EntitiesFound  int       `db:"entities_found" json:"entities_found"`
	ReviewRequired bool      `db:"review_required" json:"review_required"`
	DurationMS     float64   `db:"duration_ms" json:"duration_ms"`
	TypeCounts     []byte    `db:"type_counts" json:"-"`
}

// NewRecord builds a record from call aggregates. typeCounts maps entity type
// to the number of resolved entities of that type.
func NewRecord(mode, policy string, entitiesFound int, reviewRequired bool, duration time.Duration, typeCounts map[string]int) (*Record, error) {
	counts, err := json.Marshal(typeCounts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode type counts: %w", err)
	}
	return &Record{
		CreatedAt:      time.Now().UTC(),
		Mode:           mode,
		Policy:         policy,
		EntitiesFound:  entitiesFound,
		ReviewRequired: reviewRequired,
		DurationMS:     float64(duration.Microseconds()) / 1000.0,
		TypeCounts:     counts,
	}, nil
}

// Store handles audit persistence with PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to the database and ensures the audit schema exists.
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	logger.Info("Audit store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

// initialize verifies connectivity and creates the audit table if missing.
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS deid_audit (
			id              BIGSERIAL PRIMARY KEY,
			created_at      TIMESTAMPTZ NOT NULL,
			mode            TEXT NOT NULL,
			policy          TEXT NOT NULL,
			entities_found  INTEGER NOT NULL,
			review_required BOOLEAN NOT NULL,
			duration_ms     DOUBLE PRECISION NOT NULL,
			type_counts     JSONB NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// Insert writes one audit record.
func (s *Store) Insert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO deid_audit (created_at, mode, policy, entities_found, review_required, duration_ms, type_counts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := s.db.QueryRowxContext(ctx, query,
		record.CreatedAt, record.Mode, record.Policy,
		record.EntitiesFound, record.ReviewRequired, record.DurationMS,
		record.TypeCounts,
	).Scan(&record.ID); err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Totals aggregates all audit rows for the info endpoint.
type Totals struct {
	Calls          int64 `db:"calls" json:"calls"`
	Entities       int64 `db:"entities" json:"entities"`
	ReviewRequired int64 `db:"review_required" json:"review_required"`
}

// Stats returns cumulative totals.
func (s *Store) Stats(ctx context.Context) (*Totals, error) {
	var totals Totals
	query := `
		SELECT COUNT(*) AS calls,
		       COALESCE(SUM(entities_found), 0) AS entities,
		       COALESCE(SUM(CASE WHEN review_required THEN 1 ELSE 0 END), 0) AS review_required
		FROM deid_audit`
	if err := s.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("failed to read audit stats: %w", err)
	}
	return &totals, nil
}

// Close releases the database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL masks credentials in the connection string for logging.
func maskDatabaseURL(url string) string {
	if at := strings.Index(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
