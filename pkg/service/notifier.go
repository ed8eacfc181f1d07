package service

import (
	"context"
	"encoding/json"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/sirupsen/logrus"

	"github.com/techimanshu8/flipkart/pkg/model"
)

const orderEventsTopic = "order_events"

type MQProducer interface {
	SendSync(ctx context.Context, msgs ...*primitive.Message) (*primitive.SendResult, error)
}

// Notifier 只负责把事件发到 mq，推送/短信由下游消费方处理。
// 发送失败只记日志：通知丢失不应该拖垮订单主流程。
type Notifier interface {
	Notify(ctx context.Context, event model.OrderEvent)
}

// EventParker 兜底存储：mq 不可达时暂存事件，等待补发
type EventParker interface {
	Park(ctx context.Context, eventType, orderID string, payload []byte, errorReason string) error
}

type mqNotifier struct {
	producer MQProducer
	backlog  EventParker
	log      *logrus.Logger
}

// NewNotifier 构造 mq 通知器。backlog 可为 nil，此时发送失败仅记日志。
func NewNotifier(producer MQProducer, backlog EventParker, log *logrus.Logger) Notifier {
	return &mqNotifier{producer: producer, backlog: backlog, log: log}
}

func (n *mqNotifier) Notify(ctx context.Context, event model.OrderEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		n.log.Errorf("[Notifier] failed to marshal event %s for order %s: %v", event.Type, event.OrderID, err)
		return
	}

	msg := primitive.NewMessage(orderEventsTopic, data)
	msg.WithKeys([]string{event.OrderID})
	msg.WithTag(event.Type)

	res, err := n.producer.SendSync(ctx, msg)
	if err != nil {
		n.log.Errorf("[Notifier] failed to send event (%s) for order %s: %v", event.Type, event.OrderID, err)
		if n.backlog != nil {
			n.backlog.Park(ctx, event.Type, event.OrderID, data, err.Error())
		}
		return
	}
	n.log.Infof("[Notifier] sent event (%s) for order %s. MsgID: %s", event.Type, event.OrderID, res.MsgID)
}

// NopNotifier 测试和 mq 不可用时的降级实现
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.OrderEvent) {}
