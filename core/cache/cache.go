package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"musobuddy/core/config"
	"musobuddy/core/constants"
	"musobuddy/core/logger"
)

// Cache is the redis-backed coordination layer: the auth token blacklist
// and the webhook channel -> user lookup used on the notification hot
// path. The blacklist is written by the identity service that issues the
// tokens; this side only reads it.
type Cache interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)

	SetWebhookChannelUser(ctx context.Context, channelID, userID string) error
	GetWebhookChannelUser(ctx context.Context, channelID string) (string, error)
	DeleteWebhookChannel(ctx context.Context, channelID string) error

	Close() error
}

type redisCache struct {
	client *redis.Client
}

func NewCache(cfg config.RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logger.Info("Cache:Init:Success", "addr", cfg.Addr, "db", cfg.DB)
	return &redisCache{client: client}, nil
}

func (c *redisCache) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Exists(ctx, constants.RedisKeyTokenBlacklist+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) SetWebhookChannelUser(ctx context.Context, channelID, userID string) error {
	return c.client.Set(ctx, constants.RedisKeyWebhookChannel+channelID, userID, constants.ChannelLookupTTL).Err()
}

// GetWebhookChannelUser returns the cached owner of a channel, or "" on miss.
func (c *redisCache) GetWebhookChannelUser(ctx context.Context, channelID string) (string, error) {
	val, err := c.client.Get(ctx, constants.RedisKeyWebhookChannel+channelID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *redisCache) DeleteWebhookChannel(ctx context.Context, channelID string) error {
	return c.client.Del(ctx, constants.RedisKeyWebhookChannel+channelID).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
