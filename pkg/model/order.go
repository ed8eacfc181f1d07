package model

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

// Order Status Constants
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// 状态机：每个状态允许的下一跳
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal 状态不可再变更（admin override 除外，见 StatusAudit）
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	PaymentMethodCOD        = "cod"
	PaymentMethodCard       = "card"
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodDebitCard  = "debit_card"
	PaymentMethodUPI        = "upi"
	PaymentMethodPaypal     = "paypal"

	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodCreditCard,
		PaymentMethodDebitCard, PaymentMethodUPI, PaymentMethodPaypal:
		return true
	}
	return false
}

// Delivery attempt outcomes
const (
	AttemptSuccess             = "success"
	AttemptFailed              = "failed"
	AttemptCustomerUnavailable = "customer_unavailable"
)

// OTP 策略：10分钟有效期，5次失败后锁定
const (
	OTPTTL         = 10 * time.Minute
	OTPMaxAttempts = 5
)

// ShippingAddress 下单时从用户地址簿快照，后续地址变更不影响历史订单
type ShippingAddress struct {
	Name    string `gorm:"type:varchar(128)" json:"name"`
	Street  string `gorm:"type:varchar(255)" json:"street"`
	City    string `gorm:"type:varchar(64)" json:"city"`
	State   string `gorm:"type:varchar(64)" json:"state"`
	Pincode string `gorm:"type:varchar(16)" json:"pincode"`
	Phone   string `gorm:"type:varchar(20)" json:"phone"`
	Country string `gorm:"type:varchar(64)" json:"country"`
}

type Order struct {
	OrderID         string          `gorm:"primaryKey;type:varchar(64)" json:"order_id"`
	OrderNumber     string          `gorm:"uniqueIndex;type:varchar(32)" json:"order_number"`
	UserID          string          `gorm:"type:varchar(64);index" json:"user_id"`
	DeliveryAgentID string          `gorm:"type:varchar(64);index" json:"delivery_agent_id,omitempty"`
	Status          OrderStatus     `gorm:"type:varchar(20);index:idx_status_created_at,priority:1" json:"status"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`

	PaymentMethod string `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentStatus string `gorm:"type:varchar(20)" json:"payment_status"`
	PaymentRef    string `gorm:"type:varchar(128)" json:"payment_ref,omitempty"`

	// 金额全部服务端计算：ItemsTotal = Σ(price*qty)，TotalAmount = ItemsTotal+Tax+Shipping
	ItemsTotal     float64 `gorm:"type:decimal(12,2)" json:"items_total"`
	TaxAmount      float64 `gorm:"type:decimal(12,2)" json:"tax_amount"`
	ShippingAmount float64 `gorm:"type:decimal(12,2)" json:"shipping_amount"`
	TotalAmount    float64 `gorm:"type:decimal(12,2)" json:"total_amount"`

	TrackingNumber string `gorm:"type:varchar(64)" json:"tracking_number,omitempty"`
	Notes          string `gorm:"type:text" json:"notes,omitempty"`

	DeliveryOTP         string     `gorm:"type:varchar(6)" json:"-"`
	DeliveryOTPExpiry   *time.Time `json:"-"`
	DeliveryOTPAttempts int        `gorm:"type:int" json:"-"`

	IsPaid      bool       `json:"is_paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_status_created_at,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items    []OrderItem       `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`
	Attempts []DeliveryAttempt `gorm:"foreignKey:OrderID;references:OrderID" json:"delivery_attempts,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem 商品快照，不引用实时价格
type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	OrderID   string  `gorm:"type:varchar(64);index" json:"-"`
	ProductID string  `gorm:"type:varchar(64);index" json:"product_id"`
	SellerID  string  `gorm:"type:varchar(64);index" json:"seller_id"`
	Name      string  `gorm:"type:varchar(255)" json:"name"`
	Image     string  `gorm:"type:varchar(512)" json:"image"`
	Price     float64 `gorm:"type:decimal(12,2)" json:"price"`
	Quantity  int     `gorm:"type:int" json:"quantity"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

type DeliveryAttempt struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	OrderID     string    `gorm:"type:varchar(64);index" json:"-"`
	AttemptedAt time.Time `json:"attempted_at"`
	Status      string    `gorm:"type:varchar(24)" json:"status"`
	Notes       string    `gorm:"type:varchar(255)" json:"notes,omitempty"`
}

func (DeliveryAttempt) TableName() string {
	return "delivery_attempts"
}

// StatusAudit 每次状态变更落一条，admin override 标记 forced
type StatusAudit struct {
	ID         uint        `gorm:"primaryKey"`
	OrderID    string      `gorm:"type:varchar(64);index"`
	ActorID    string      `gorm:"type:varchar(64)"`
	ActorRole  string      `gorm:"type:varchar(16)"`
	FromStatus OrderStatus `gorm:"type:varchar(20)"`
	ToStatus   OrderStatus `gorm:"type:varchar(20)"`
	Forced     bool
	CreatedAt  time.Time
}

func (StatusAudit) TableName() string {
	return "order_status_audit"
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewOrderNumber 生成展示用订单号：ORD-<毫秒时间戳>-<5位base36>
func NewOrderNumber(now time.Time) string {
	var b strings.Builder
	b.WriteString("ORD-")
	b.WriteString(big.NewInt(now.UnixMilli()).String())
	b.WriteByte('-')
	for i := 0; i < 5; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(36))
		if err != nil {
			// crypto/rand 不可用时进程没有继续的意义
			panic(err)
		}
		b.WriteByte(base36[n.Int64()])
	}
	return strings.ToUpper(b.String())
}

// NewDeliveryOTP [100000, 999999] 均匀分布
func NewDeliveryOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		panic(err)
	}
	return big.NewInt(100000 + n.Int64()).String()
}

// SubtotalFor 过滤出指定卖家的行项目小计（卖家视图用）
func (o *Order) SubtotalFor(sellerID string) float64 {
	var sum float64
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			sum += it.Price * float64(it.Quantity)
		}
	}
	return sum
}

// ItemsFor 返回指定卖家的行项目（不暴露其他卖家的数据）
func (o *Order) ItemsFor(sellerID string) []OrderItem {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			items = append(items, it)
		}
	}
	return items
}
