// Package sqlite persists alerts in a local SQLite file. It backs the local
// harness when no cloud emulator is running.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/storage"
)

// BackendName is the name used to register this backend.
const BackendName = "sqlite"

const schema = `CREATE TABLE IF NOT EXISTS monitoring_alerts (
	id        TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	document  TEXT NOT NULL
)`

func init() {
	storage.Register(BackendName, Build)
}

func Build(ctx context.Context, cfg storage.Config, logger logging.ServiceLogger) (storage.Store, error) {
	store, err := Open(ctx, cfg.GetSQLiteFile())
	if err != nil {
		return nil, err
	}
	logger.Info("Opened SQLite database", logging.LogFields{"file": cfg.GetSQLiteFile()})
	return store, nil
}

type Store struct {
	db *sql.DB
}

// Open opens file, creating the schema. ":memory:" is accepted.
func Open(ctx context.Context, file string) (*Store, error) {
	if file == "" {
		return nil, errors.New("sqlite: file is required")
	}
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", file, err)
	}
	// SQLite allows a single writer; an in-memory database also lives on
	// one connection only.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, storage.Wrap(BackendName, "create table", "", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, rec alert.Record) error {
	doc, err := jsoncodec.MarshalString(rec)
	if err != nil {
		return storage.Wrap(BackendName, "marshal", rec.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitoring_alerts (id, timestamp, document) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp, document = excluded.document`,
		rec.ID, rec.Timestamp, doc)
	return storage.Wrap(BackendName, "save", rec.ID, err)
}

func (s *Store) Get(ctx context.Context, id string) (alert.Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM monitoring_alerts WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, storage.ErrNotFound)
	}
	if err != nil {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, err)
	}
	return decode(id, doc)
}

func (s *Store) List(ctx context.Context, limit int) ([]alert.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document FROM monitoring_alerts ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		storage.NormalizeLimit(limit))
	if err != nil {
		return nil, storage.Wrap(BackendName, "list", "", err)
	}
	defer rows.Close()

	var records []alert.Record
	for rows.Next() {
		var id, doc string
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
	return s.db.Close()
}

func decode(id, doc string) (alert.Record, error) {
	var item map[string]any
	if err := jsoncodec.UnmarshalString(doc, &item); err != nil {
		return alert.Record{}, storage.Wrap(BackendName, "unmarshal", id, err)
	}
	return alert.RecordFromItem(item), nil
}
