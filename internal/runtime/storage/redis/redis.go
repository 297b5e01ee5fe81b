// Package redis persists alerts as JSON strings with a sorted-set index by
// timestamp.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/storage"
)

// BackendName is the name used to register this backend.
const BackendName = "redis"

const pingTimeout = 5 * time.Second

func init() {
	storage.Register(BackendName, Build)
}

func Build(ctx context.Context, cfg storage.Config, logger logging.ServiceLogger) (storage.Store, error) {
	if cfg.GetRedisURL() == "" {
		return nil, errors.New("redis: URL is required")
	}
	opts, err := goredis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("redis: parse URL: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	logger.Info("Connected to Redis", logging.LogFields{"addr": opts.Addr, "db": opts.DB})
	return New(client, cfg.GetRedisKeyPrefix()), nil
}

type Store struct {
	client goredis.UniversalClient
	prefix string
}

// New namespaces every key under prefix; "alertflow" when empty.
func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "alertflow"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + ":alert:" + id
}

func (s *Store) index() string {
	return s.prefix + ":alerts"
}

// score orders the index by the enrichment timestamp, falling back to the
// wall clock for timestamps in another layout.
func score(ts string) float64 {
	parsed, err := time.Parse(alert.TimestampLayout, ts)
	if err != nil {
		parsed = time.Now()
	}
	return float64(parsed.UnixMicro())
}

func (s *Store) Save(ctx context.Context, rec alert.Record) error {
	doc, err := jsoncodec.MarshalString(rec)
	if err != nil {
		return storage.Wrap(BackendName, "marshal", rec.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.ID), doc, 0)
		pipe.ZAdd(ctx, s.index(), goredis.Z{Score: score(rec.Timestamp), Member: rec.ID})
		return nil
	})
	return storage.Wrap(BackendName, "save", rec.ID, err)
}

func (s *Store) Get(ctx context.Context, id string) (alert.Record, error) {
	doc, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, storage.ErrNotFound)
	}
	if err != nil {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, err)
	}
	return decode(id, doc)
}

// List returns the newest records first. Index entries whose document has
// been removed are skipped.
func (s *Store) List(ctx context.Context, limit int) ([]alert.Record, error) {
	limit = storage.NormalizeLimit(limit)

	ids, err := s.client.ZRevRange(ctx, s.index(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, storage.Wrap(BackendName, "list", "", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	docs, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storage.Wrap(BackendName, "list", "", err)
	}

	records := make([]alert.Record, 0, len(docs))
	for i, raw := range docs {
		doc, ok := raw.(string)
		if !ok {
			continue
		}
		rec, err := decode(ids[i], doc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func decode(id, doc string) (alert.Record, error) {
	var item map[string]any
	if err := jsoncodec.UnmarshalString(doc, &item); err != nil {
		return alert.Record{}, storage.Wrap(BackendName, "unmarshal", id, err)
	}
	return alert.RecordFromItem(item), nil
}
