package repository

import (
	"context"
	"fmt"
	"strconv"

	redis "github.com/redis/go-redis/v9"
)

// CartRepo 购物车只是结账前的暂存，放 Redis hash；
// 展示数据（名称/价格/库存）读取时从商品表join。
type CartRepo interface {
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	// GetItems 返回 productID -> quantity
	GetItems(ctx context.Context, userID string) (map[string]int, error)
	Clear(ctx context.Context, userID string) error
}

type cartRedis struct {
	rdb *redis.Client
}

func NewCartRedis(rdb *redis.Client) CartRepo {
	return &cartRedis{rdb: rdb}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func (r *cartRedis) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	return r.rdb.HIncrBy(ctx, cartKey(userID), productID, int64(quantity)).Err()
}

func (r *cartRedis) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	return r.rdb.HSet(ctx, cartKey(userID), productID, quantity).Err()
}

func (r *cartRedis) RemoveItem(ctx context.Context, userID, productID string) error {
	return r.rdb.HDel(ctx, cartKey(userID), productID).Err()
}

func (r *cartRedis) GetItems(ctx context.Context, userID string) (map[string]int, error) {
	data, err := r.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	items := make(map[string]int, len(data))
	for id, v := range data {
		q, _ := strconv.Atoi(v)
		if q > 0 {
			items[id] = q
		}
	}
	return items, nil
}

func (r *cartRedis) Clear(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, cartKey(userID)).Err()
}
