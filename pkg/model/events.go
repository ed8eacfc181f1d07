package model

// 通知事件只负责定义 payload，投递（push/SMS/email）由下游消费方实现
const (
	EventOrderCreated     = "order_created"
	EventOrderConfirmed   = "order_confirmed"
	EventOrderShipped     = "order_shipped"
	EventDeliveryAssigned = "delivery_assigned"
	EventOTPGenerated     = "otp_generated"
	EventOrderDelivered   = "order_delivered"
	EventOrderCancelled   = "order_cancelled"
)

type OrderEvent struct {
	Type        string            `json:"type"`
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number,omitempty"`
	RecipientID string            `json:"recipient_id"`
	Data        map[string]string `json:"data,omitempty"`
}
