package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	BacklogStreamKey = "mq:order_events:backlog"
)

// EventBacklog 订单事件兜底队列：mq 发送失败的事件落到本地 Redis Stream，
// 等待人工或后台任务补发。
type EventBacklog struct {
	rdb *redis.Client
	log *logrus.Logger
}

// NewEventBacklog 构造事件兜底队列
func NewEventBacklog(rdb *redis.Client, log *logrus.Logger) *EventBacklog {
	return &EventBacklog{rdb: rdb, log: log}
}

// Park 将一条发送失败的事件写入兜底队列
func (b *EventBacklog) Park(ctx context.Context, eventType, orderID string, payload []byte, errorReason string) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: BacklogStreamKey,
		Values: map[string]interface{}{
			"event_type":   eventType,
			"order_id":     orderID,
			"payload":      string(payload),
			"error_reason": errorReason,
			"created_at":   time.Now().UnixMilli(),
		},
	}).Err()

	if err != nil {
		b.log.Errorf("[EventBacklog] Failed to park event (type=%s, orderID=%s): %v", eventType, orderID, err)
		return errors.Wrap(err, "park order event")
	}

	b.log.Warnf("[EventBacklog] Undelivered event parked (type=%s, orderID=%s, reason=%s)",
		eventType, orderID, errorReason)
	return nil
}
