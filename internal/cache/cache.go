package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyecare/calendar-gateway/internal/config"
)

// Cache 把拉取到的平台数据集缓存在 redis 中，并用标签集合支持按标签整体失效
// 一个标签对应一个 redis set，set 里记录挂在该标签下的所有缓存键，
// 失效一个标签时把 set 里的键全部删掉
type Cache struct {
	cfg    *config.Config
	client *redis.Client
}

func New(cfg *config.Config, client *redis.Client) *Cache {
	return &Cache{
		cfg:    cfg,
		client: client,
	}
}

func (c *Cache) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(c.cfg.Redis.OperationTimeout)*time.Second)
}

func tagSetKey(tag string) string {
	return fmt.Sprintf("cache_tag_%s", tag)
}

// Get 读取缓存并反序列化到 v，第一个返回值表示是否命中
func (c *Cache) Get(ctx context.Context, key string, v any) (bool, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, err
	}
	return true, nil
}

// Set 写入缓存并把键登记到标签集合中
func (c *Cache) Set(ctx context.Context, tag string, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	if err := c.client.Set(ctx, key, raw, time.Duration(c.cfg.Redis.CacheExpiration)*time.Second).Err(); err != nil {
		return err
	}
	return c.client.SAdd(ctx, tagSetKey(tag), key).Err()
}

// InvalidateTag 删除某个标签下登记的全部缓存键
func (c *Cache) InvalidateTag(ctx context.Context, tag string) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	keys, err := c.client.SMembers(ctx, tagSetKey(tag)).Result()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return c.client.Del(ctx, tagSetKey(tag)).Err()
}
