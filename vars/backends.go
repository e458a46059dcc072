package vars

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-redis/redis/v8"
	bolt "go.etcd.io/bbolt"
)

// FileBackend persists the scope map as a single JSON document. Useful
// for local development and embedded deployments.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend at path. The parent directory
// must exist.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the JSON document. A missing file is an empty store.
func (f *FileBackend) Load(ctx context.Context) (map[string]map[string]Entry, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	var snapshot map[string]map[string]Entry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.path, err)
	}
	return snapshot, nil
}

// Save writes the snapshot atomically via a temp file rename.
func (f *FileBackend) Save(ctx context.Context, snapshot map[string]map[string]Entry) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// Close is a no-op for file backends.
func (f *FileBackend) Close() error { return nil }

// BoltBackend persists the scope map in a local bbolt database, one
// bucket per scope, one key per variable.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (creating if needed) the database at path.
func NewBoltBackend(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &BoltBackend{db: db}, nil
}

// Load walks every bucket into a snapshot.
func (b *BoltBackend) Load(ctx context.Context) (map[string]map[string]Entry, error) {
	snapshot := map[string]map[string]Entry{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, bucket *bolt.Bucket) error {
			scope := string(name)
			snapshot[scope] = map[string]Entry{}
			return bucket.ForEach(func(k, v []byte) error {
				var entry Entry
				if err := json.Unmarshal(v, &entry); err != nil {
					return fmt.Errorf("decoding %s.%s: %w", scope, string(k), err)
				}
				snapshot[scope][string(k)] = entry
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Save replaces every bucket with the snapshot contents in a single
// transaction.
func (b *BoltBackend) Save(ctx context.Context, snapshot map[string]map[string]Entry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for scope, entries := range snapshot {
			if tx.Bucket([]byte(scope)) != nil {
				if err := tx.DeleteBucket([]byte(scope)); err != nil {
					return fmt.Errorf("resetting scope %s: %w", scope, err)
				}
			}
			bucket, err := tx.CreateBucket([]byte(scope))
			if err != nil {
				return fmt.Errorf("creating scope %s: %w", scope, err)
			}
			for name, entry := range entries {
				data, err := json.Marshal(entry)
				if err != nil {
					return fmt.Errorf("encoding %s.%s: %w", scope, name, err)
				}
				if err := bucket.Put([]byte(name), data); err != nil {
					return fmt.Errorf("storing %s.%s: %w", scope, name, err)
				}
			}
		}
		return nil
	})
}

// Close closes the database.
func (b *BoltBackend) Close() error { return b.db.Close() }

// RedisBackend persists the scope map in Redis, one hash per scope under
// "{prefix}:{scope}". Suitable when several runtime processes should see
// the same persisted variables.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to Redis at addr and verifies the connection.
func NewRedisBackend(ctx context.Context, addr, password string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisBackend{client: client, prefix: "canvasflow:vars"}, nil
}

func (r *RedisBackend) scopeKey(scope string) string {
	return r.prefix + ":" + scope
}

// Load reads every "{prefix}:*" hash into a snapshot.
func (r *RedisBackend) Load(ctx context.Context) (map[string]map[string]Entry, error) {
	keys, err := r.client.Keys(ctx, r.prefix+":*").Result()
	if err != nil {
		return nil, fmt.Errorf("listing variable scopes: %w", err)
	}
	snapshot := map[string]map[string]Entry{}
	for _, key := range keys {
		scope := strings.TrimPrefix(key, r.prefix+":")
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("reading scope %s: %w", scope, err)
		}
		snapshot[scope] = map[string]Entry{}
		for name, raw := range fields {
			var entry Entry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				return nil, fmt.Errorf("decoding %s.%s: %w", scope, name, err)
			}
			snapshot[scope][name] = entry
		}
	}
	return snapshot, nil
}

// Save writes each scope as one hash, replacing prior contents.
func (r *RedisBackend) Save(ctx context.Context, snapshot map[string]map[string]Entry) error {
	pipe := r.client.TxPipeline()
	for scope, entries := range snapshot {
		key := r.scopeKey(scope)
		pipe.Del(ctx, key)
		fields := make(map[string]interface{}, len(entries))
		for name, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("encoding %s.%s: %w", scope, name, err)
			}
			fields[name] = string(data)
		}
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persisting variable scopes: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisBackend) Close() error { return r.client.Close() }
