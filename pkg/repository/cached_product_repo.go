package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/techimanshu8/flipkart/pkg/model"
)

const productCacheTTL = 5 * time.Minute

// cachedProductRepo 商品详情读多写少，加一层 Redis 缓存：
// miss 用 singleflight 聚合，Redis 故障时熔断降级直读 MySQL。
// 写路径（Update/Delete）直接删 key；库存由订单事务改，缓存里的
// stock 只用于展示，扣减永远打在数据库的条件更新上。
type cachedProductRepo struct {
	next ProductRepo
	rdb  *redis.Client
	sf   singleflight.Group
	cb   *gobreaker.CircuitBreaker
	log  *logrus.Logger
}

func NewCachedProductRepo(next ProductRepo, rdb *redis.Client, log *logrus.Logger) ProductRepo {
	st := gobreaker.Settings{
		Name:        "ProductCacheRedis",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("CircuitBreaker[%s] state changed from %s to %s", name, from, to)
		},
	}

	return &cachedProductRepo{
		next: next,
		rdb:  rdb,
		cb:   gobreaker.NewCircuitBreaker(st),
		log:  log,
	}
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func (c *cachedProductRepo) GetByID(ctx context.Context, productID string) (*model.Product, error) {
	key := productKey(productID)

	val, err := c.cb.Execute(func() (interface{}, error) {
		res, err := c.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return res, nil
	})

	if err != nil {
		// 熔断开启或 Redis 异常：降级直读数据库
		c.log.Warnf("[ProductCache] cache unavailable, falling back to MySQL: %v", err)
		return c.next.GetByID(ctx, productID)
	}

	if val != nil {
		var p model.Product
		if uerr := json.Unmarshal([]byte(val.(string)), &p); uerr == nil {
			return &p, nil
		}
		c.log.Errorf("[ProductCache] failed to unmarshal %s, dropping key", key)
		c.rdb.Del(ctx, key)
	}

	// miss：聚合相同商品的并发读，回写缓存
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		p, err := c.next.GetByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if data, merr := json.Marshal(p); merr == nil {
			if serr := c.rdb.Set(ctx, key, data, productCacheTTL).Err(); serr != nil {
				c.log.Warnf("[ProductCache] failed to backfill %s: %v", key, serr)
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.Product), nil
}

func (c *cachedProductRepo) Create(ctx context.Context, p *model.Product) error {
	return c.next.Create(ctx, p)
}

func (c *cachedProductRepo) Update(ctx context.Context, p *model.Product) error {
	if err := c.next.Update(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, p.ProductID)
	return nil
}

func (c *cachedProductRepo) Delete(ctx context.Context, productID string) error {
	if err := c.next.Delete(ctx, productID); err != nil {
		return err
	}
	c.invalidate(ctx, productID)
	return nil
}

func (c *cachedProductRepo) Invalidate(ctx context.Context, ids ...string) {
	c.invalidate(ctx, ids...)
}

func (c *cachedProductRepo) invalidate(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if err := c.rdb.Del(ctx, productKey(id)).Err(); err != nil {
			c.log.Warnf("[ProductCache] failed to invalidate %s: %v", id, err)
		}
	}
}

func (c *cachedProductRepo) GetByIDs(ctx context.Context, ids []string) ([]*model.Product, error) {
	return c.next.GetByIDs(ctx, ids)
}

func (c *cachedProductRepo) List(ctx context.Context, offset, limit int) ([]*model.Product, int64, error) {
	return c.next.List(ctx, offset, limit)
}

func (c *cachedProductRepo) ListBySeller(ctx context.Context, sellerID string, offset, limit int) ([]*model.Product, int64, error) {
	return c.next.ListBySeller(ctx, sellerID, offset, limit)
}

func (c *cachedProductRepo) LowStock(ctx context.Context, sellerID string, threshold int) ([]*model.Product, error) {
	return c.next.LowStock(ctx, sellerID, threshold)
}

// ProductInvalidator 订单流程改动库存后用它删缓存（见 service 层）
type ProductInvalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}
