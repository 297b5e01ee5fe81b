// Package postgres persists alerts as JSONB documents in a single table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/storage"
)

// BackendName is the name used to register this backend.
const BackendName = "postgres"

const connectTimeout = 5 * time.Second

func init() {
	storage.Register(BackendName, Build)
}

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Build connects a pool and makes sure the table exists.
func Build(ctx context.Context, cfg storage.Config, logger logging.ServiceLogger) (storage.Store, error) {
	if cfg.GetPostgresURL() == "" {
		return nil, errors.New("postgres: URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.GetPostgresURL())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnIdleTime = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	store := New(pool, cfg.GetPostgresTable())
	store.closer = pool.Close
	if err := store.EnsureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL", logging.LogFields{
		"host":  poolCfg.ConnConfig.Host,
		"table": store.table,
	})
	return store, nil
}

type Store struct {
	db     DB
	table  string
	closer func()
}

// New uses table, or monitoring_alerts when empty.
func New(db DB, table string) *Store {
	if table == "" {
		table = "monitoring_alerts"
	}
	return &Store{db: db, table: table}
}

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// EnsureSchema creates the alerts table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          TEXT PRIMARY KEY,
	"timestamp" TEXT NOT NULL,
	document    JSONB NOT NULL,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.ident())
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return storage.Wrap(BackendName, "create table", "", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, rec alert.Record) error {
	doc, err := jsoncodec.Marshal(rec)
	if err != nil {
		return storage.Wrap(BackendName, "marshal", rec.ID, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, "timestamp", document) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET "timestamp" = EXCLUDED."timestamp", document = EXCLUDED.document`, s.ident())

	_, err = s.db.Exec(ctx, query, rec.ID, rec.Timestamp, doc)
	return storage.Wrap(BackendName, "save", rec.ID, err)
}

func (s *Store) Get(ctx context.Context, id string) (alert.Record, error) {
	query := fmt.Sprintf(`SELECT document FROM %s WHERE id = $1`, s.ident())

	var doc []byte
	err := s.db.QueryRow(ctx, query, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, storage.ErrNotFound)
	}
	if err != nil {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, err)
	}
	return decode(id, doc)
}

func (s *Store) List(ctx context.Context, limit int) ([]alert.Record, error) {
	query := fmt.Sprintf(`SELECT id, document FROM %s ORDER BY "timestamp" DESC, id DESC LIMIT $1`, s.ident())

	rows, err := s.db.Query(ctx, query, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, storage.Wrap(BackendName, "list", "", err)
	}
	defer rows.Close()

	var records []alert.Record
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, storage.Wrap(BackendName, "list", "", err)
		}
		rec, err := decode(id, doc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(BackendName, "list", "", err)
	}
	return records, nil
}

func (s *Store) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

func decode(id string, doc []byte) (alert.Record, error) {
	var item map[string]any
	if err := jsoncodec.Unmarshal(doc, &item); err != nil {
		return alert.Record{}, storage.Wrap(BackendName, "unmarshal", id, err)
	}
	return alert.RecordFromItem(item), nil
}
