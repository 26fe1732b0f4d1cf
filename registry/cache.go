package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/aouyang1/go-stationcast/internal/fsutil"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var ErrCacheNotFound = errors.New("prediction cache not found")

// PredictionCache persists the prediction table between runs.
type PredictionCache interface {
	Load(ctx context.Context) (*Table, error)
	Save(ctx context.Context, table *Table) error
}

// NopCache never holds a table.
type NopCache struct{}

func (NopCache) Load(context.Context) (*Table, error) {
	return nil, ErrCacheNotFound
}

func (NopCache) Save(context.Context, *Table) error {
	return nil
}

// FileCache keeps the table in a single JSON file.
type FileCache struct {
	path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Load(_ context.Context) (*Table, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s, %w", c.path, ErrCacheNotFound)
		}
		return nil, fmt.Errorf("unable to read prediction cache %s, %w", c.path, err)
	}
	return decodeTable(data)
}

// Save replaces the file atomically so a crash never leaves a partial table behind.
func (c *FileCache) Save(_ context.Context, table *Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("unable to encode prediction cache, %w", err)
	}
	return fsutil.WriteFileAtomic(c.path, data, 0o644)
}

// RedisCache keeps the table under a single key.
type RedisCache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisCache stores the table under key. A zero ttl keeps it until it is overwritten.
func NewRedisCache(client redis.Cmdable, key string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// DialRedis connects to a redis URL such as redis://localhost:6379/0 and checks the server
// answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis url, %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to reach redis at %s, %w", opts.Addr, err)
	}
	return client, nil
}

func (c *RedisCache) Load(ctx context.Context) (*Table, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("key %s, %w", c.key, ErrCacheNotFound)
		}
		return nil, fmt.Errorf("unable to read prediction cache key %s, %w", c.key, err)
	}
	return decodeTable(data)
}

func (c *RedisCache) Save(ctx context.Context, table *Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("unable to encode prediction cache, %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("unable to write prediction cache key %s, %w", c.key, err)
	}
	return nil
}

func decodeTable(data []byte) (*Table, error) {
	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("unable to decode prediction cache, %w", err)
	}
	if table.Predictions == nil {
		table.Predictions = make(map[string]map[string]*Series)
	}
	return &table, nil
}
