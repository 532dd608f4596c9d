// Package cache keeps per-channel contacts and async task state in Redis.
//
// Keys:
//   - channel-scout:contact:v1:{channelID}  contacts, TTL Redis.CacheTTL (7 d)
//   - channel-scout:task:v1:{processID}     task state, TTL BackgroundTasks.MaxTaskAge
//   - channel-scout:tasks                   sorted set of process IDs by creation time
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"channel-scout/internal/config"
	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/models"
)

const (
	DefaultContactTTL = 7 * 24 * time.Hour

	contactPrefix = "channel-scout:contact:v1:"
)

// Client wraps the Redis client with domain helpers
type Client struct {
	rdb        *redis.Client
	contactTTL time.Duration
	logger     types.Logger
}

// New connects to the configured Redis. An unparsable URL falls back to
// localhost:6379.
func New(cfg *config.Config, logger types.Logger) *Client {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("component", "redis_cache")

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.WithError(err).Warn("invalid Redis URL, using localhost:6379")
		opts = &redis.Options{Addr: "localhost:6379"}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}

	timeout := cfg.Redis.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	return NewWithClient(redis.NewClient(opts), cfg.Redis.CacheTTL, logger)
}

// NewWithClient wraps an existing client
func NewWithClient(rdb *redis.Client, contactTTL time.Duration, logger types.Logger) *Client {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if contactTTL <= 0 {
		contactTTL = DefaultContactTTL
	}
	return &Client{rdb: rdb, contactTTL: contactTTL, logger: logger}
}

// Ping tests the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func contactKey(channelID string) string {
	return contactPrefix + channelID
}

// GetContact returns the cached contacts of a channel. A miss is (zero, false, nil).
func (c *Client) GetContact(ctx context.Context, channelID string) (models.ContactInfo, bool, error) {
	raw, err := c.rdb.Get(ctx, contactKey(channelID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ContactInfo{}, false, nil
	}
	if err != nil {
		return models.ContactInfo{}, false, fmt.Errorf("failed to read contact cache: %w", err)
	}

	var info models.ContactInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return models.ContactInfo{}, false, fmt.Errorf("failed to decode cached contact: %w", err)
	}
	return info, true, nil
}

// SetContact caches the contacts of a channel for the contact TTL
func (c *Client) SetContact(ctx context.Context, channelID string, info models.ContactInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode contact: %w", err)
	}
	if err := c.rdb.Set(ctx, contactKey(channelID), raw, c.contactTTL).Err(); err != nil {
		return fmt.Errorf("failed to write contact cache: %w", err)
	}
	return nil
}
