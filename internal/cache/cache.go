// Package cache remembers extraction results so a listing is only sent to the model once.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/booking"
	"github.com/xkilldash9x/flight-agent-cli/internal/config"
)

const keyPrefix = "flightagent:extract:"

// Cache is an extraction cache that can be released.
type Cache interface {
	booking.ExtractionCache
	Close() error
}

// Client is the subset of the redis client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisCache stores extracted flights as JSON under a hash of the source text.
type RedisCache struct {
	client Client
	ttl    time.Duration
	logger *zap.Logger
}

// New returns a no-op cache when cfg has no redis address, otherwise a RedisCache whose
// connection has been verified.
func New(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (Cache, error) {
	if cfg.RedisAddr == "" {
		return NoOpCache{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return NewRedisCache(client, cfg.TTL, logger), nil
}

// NewRedisCache wraps an existing client. A zero ttl keeps entries forever.
func NewRedisCache(client Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger.Named("cache")}
}

// Key is the redis key for text.
func Key(text string) string {
	return keyPrefix + strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// Get returns the flights cached for text. A missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, text string) ([]schemas.FlightRecord, bool, error) {
	key := Key(text)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss.", zap.String("key", key))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	var entries []cachedFlight
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("cache entry %s is corrupt: %w", key, err)
	}
	flights := make([]schemas.FlightRecord, 0, len(entries))
	for i, e := range entries {
		rec, err := e.record()
		if err != nil {
			return nil, false, fmt.Errorf("cache entry %s holds an invalid flight at index %d: %w", key, i, err)
		}
		flights = append(flights, rec)
	}
	c.logger.Debug("Cache hit.", zap.String("key", key), zap.Int("flight_count", len(flights)))
	return flights, true, nil
}

// cachedFlight is the stored form of a FlightRecord. Entries are rebuilt through the
// record constructor on the way out.
type cachedFlight struct {
	FlightNumber string `json:"flight_number"`
	Price        int    `json:"price"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Date         string `json:"date"`
}

func (f cachedFlight) record() (schemas.FlightRecord, error) {
	date, err := schemas.ParseDate(f.Date)
	if err != nil {
		return schemas.FlightRecord{}, err
	}
	return schemas.NewFlightRecord(f.FlightNumber, f.Price, f.Origin, f.Destination, date)
}

// Put stores flights for text.
func (c *RedisCache) Put(ctx context.Context, text string, flights []schemas.FlightRecord) error {
	data, err := json.Marshal(flights)
	if err != nil {
		return fmt.Errorf("failed to encode flights: %w", err)
	}
	key := Key(text)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoOpCache never hits.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) ([]schemas.FlightRecord, bool, error) {
	return nil, false, nil
}

func (NoOpCache) Put(context.Context, string, []schemas.FlightRecord) error { return nil }

func (NoOpCache) Close() error { return nil }
