package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
)

// Client Redis 客户端封装
// 当前用于同步任务的单航道互斥锁与接口限流
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 同步互斥锁 ──
//
// 同一比较范围内不允许两次对账并发执行。
// 锁通过 SETNX + TTL 实现租约语义：持有者崩溃后租约到期自动释放。

const syncLockKey = "sync:lock"

// AcquireSyncLock 尝试获取同步锁
// 返回 false 表示锁已被其他运行持有；owner 用于释放时校验归属
func (c *Client) AcquireSyncLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, syncLockKey, owner, ttl).Result()
}

// ReleaseSyncLock 释放同步锁
// 仅当锁仍属于 owner 时删除，避免误删后续运行的锁
func (c *Client) ReleaseSyncLock(ctx context.Context, owner string) error {
	const script = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`
	return c.rdb.Eval(ctx, script, []string{syncLockKey}, owner).Err()
}

// ── 接口限流 ──

// CheckRateLimit 基于 Redis 的滑动窗口限流
// 返回 true 表示本次请求允许通过
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return countCmd.Val() < int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
