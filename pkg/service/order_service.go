package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
)

type CheckoutInput struct {
	AddressID      string  `json:"address_id"`
	PaymentMethod  string  `json:"payment_method"`
	TaxAmount      float64 `json:"tax_amount"`
	ShippingAmount float64 `json:"shipping_amount"`
	Notes          string  `json:"notes"`
}

type OrderService struct {
	orders   repository.OrderRepo
	products repository.ProductRepo
	users    repository.UserRepo
	cart     repository.CartRepo
	inval    repository.ProductInvalidator
	notifier Notifier
	log      *logrus.Logger

	ordersCreatedTotal uint64
	stockRejectedTotal uint64
}

func NewOrderService(
	orders repository.OrderRepo,
	products repository.ProductRepo,
	users repository.UserRepo,
	cart repository.CartRepo,
	inval repository.ProductInvalidator,
	notifier Notifier,
	log *logrus.Logger,
) *OrderService {
	s := &OrderService{
		orders:   orders,
		products: products,
		users:    users,
		cart:     cart,
		inval:    inval,
		notifier: notifier,
		log:      log,
	}
	s.registerMetrics()
	return s
}

func (s *OrderService) registerMetrics() {
	meter := otel.GetMeterProvider().Meter("flipkart.orders")
	meter.Int64ObservableGauge("app_orders_created_total",
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(int64(atomic.LoadUint64(&s.ordersCreatedTotal)))
			return nil
		}),
	)
	meter.Int64ObservableGauge("app_stock_rejected_total",
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(int64(atomic.LoadUint64(&s.stockRejectedTotal)))
			return nil
		}),
	)
}

// Checkout 结账：快照购物车和地址、服务端计算金额、
// 单事务内条件扣减全部库存并落单，最后清空购物车。
func (s *OrderService) Checkout(ctx context.Context, actor auth.Actor, in CheckoutInput) (*model.Order, error) {
	// 1. 入参校验
	method := in.PaymentMethod
	if method == "" {
		method = model.PaymentMethodCOD
	}
	if !model.ValidPaymentMethod(method) {
		return nil, errors.Wrapf(model.ErrValidation, "unknown payment method %q", method)
	}
	if in.TaxAmount < 0 || in.ShippingAmount < 0 {
		return nil, errors.Wrap(model.ErrValidation, "negative tax or shipping amount")
	}

	// 2. 读购物车
	cartItems, err := s.cart.GetItems(ctx, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cart")
	}
	if len(cartItems) == 0 {
		return nil, errors.Wrap(model.ErrValidation, "no order items")
	}

	// 3. 收货地址快照
	addr, err := s.users.GetAddress(ctx, actor.ID, in.AddressID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, errors.Wrap(model.ErrValidation, "invalid delivery address")
		}
		return nil, err
	}

	// 4. 商品快照 + 金额服务端计算（不信任调用方的 total）
	ids := make([]string, 0, len(cartItems))
	for id := range cartItems {
		ids = append(ids, id)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}

	now := time.Now()
	items := make([]model.OrderItem, 0, len(cartItems))
	var itemsTotal float64
	for id, qty := range cartItems {
		p, ok := byID[id]
		if !ok || !p.IsActive {
			return nil, errors.Wrapf(model.ErrNotFound, "product %s", id)
		}
		if qty < 1 {
			return nil, errors.Wrapf(model.ErrValidation, "invalid quantity for product %s", id)
		}
		items = append(items, model.OrderItem{
			ProductID: p.ProductID,
			SellerID:  p.SellerID,
			Name:      p.Name,
			Image:     firstImage(p.Images),
			Price:     p.Price,
			Quantity:  qty,
		})
		itemsTotal += p.Price * float64(qty)
	}

	paymentStatus := model.PaymentStatusPending
	if method == model.PaymentMethodCOD {
		paymentStatus = model.PaymentStatusCompleted
	}

	order := &model.Order{
		OrderID:         uuid.New().String(),
		OrderNumber:     model.NewOrderNumber(now),
		UserID:          actor.ID,
		Status:          model.OrderStatusPending,
		ShippingAddress: snapshotAddress(addr),
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		ItemsTotal:      itemsTotal,
		TaxAmount:       in.TaxAmount,
		ShippingAmount:  in.ShippingAmount,
		TotalAmount:     itemsTotal + in.TaxAmount + in.ShippingAmount,
		Notes:           in.Notes,
		Items:           items,
	}

	// 5. 扣库存 + 落单，单事务
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, model.ErrInsufficientStock) {
			atomic.AddUint64(&s.stockRejectedTotal, 1)
		}
		return nil, err
	}
	atomic.AddUint64(&s.ordersCreatedTotal, 1)

	// 6. 库存变了，踢掉缓存里的展示数据
	if s.inval != nil {
		s.inval.Invalidate(ctx, ids...)
	}

	// 7. 清空购物车。失败只记日志：订单已成立
	if err := s.cart.Clear(ctx, actor.ID); err != nil {
		s.log.Errorf("[OrderService] failed to clear cart for user %s after order %s: %v", actor.ID, order.OrderID, err)
	}

	s.notifier.Notify(ctx, model.OrderEvent{
		Type:        model.EventOrderCreated,
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		RecipientID: actor.ID,
	})

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor auth.Actor, orderID string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := auth.Can(actor, auth.ActionOrderView, auth.RefForOrder(order)); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, actor auth.Actor) ([]*model.Order, error) {
	return s.orders.ListByUser(ctx, actor.ID)
}

func (s *OrderService) ListAll(ctx context.Context, actor auth.Actor, page, limit int) ([]*model.Order, int64, error) {
	if actor.Role != model.RoleAdmin {
		return nil, 0, errors.Wrap(model.ErrForbidden, "admin only")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.orders.ListAll(ctx, (page-1)*limit, limit)
}

// MarkPaid 支付回调（网关本身是模拟的）：记录支付结果
func (s *OrderService) MarkPaid(ctx context.Context, actor auth.Actor, orderID, paymentRef string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := auth.Can(actor, auth.ActionOrderPay, auth.RefForOrder(order)); err != nil {
		return nil, err
	}

	if _, err := s.orders.MarkPaid(ctx, orderID, order.UserID, paymentRef, time.Now()); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

// CancelByCustomer 仅 pending 可取消，整单回补库存
func (s *OrderService) CancelByCustomer(ctx context.Context, actor auth.Actor, orderID string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := auth.Can(actor, auth.ActionOrderCancel, auth.RefForOrder(order)); err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, errors.Wrapf(model.ErrInvalidTransition, "cannot cancel order in status %s", order.Status)
	}

	matched, err := s.orders.CancelRestocking(ctx, &repository.StatusPatch{
		OrderID: orderID,
		From:    []model.OrderStatus{model.OrderStatusPending},
		To:      model.OrderStatusCancelled,
		Audit: &model.StatusAudit{
			OrderID:    orderID,
			ActorID:    actor.ID,
			ActorRole:  string(actor.Role),
			FromStatus: order.Status,
			ToStatus:   model.OrderStatusCancelled,
		},
	}, order.Items)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrap(model.ErrInvalidTransition, "order is no longer cancellable")
	}

	s.invalidateItems(ctx, order.Items)
	s.notifier.Notify(ctx, model.OrderEvent{
		Type:        model.EventOrderCancelled,
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		RecipientID: order.UserID,
	})

	return s.orders.GetByID(ctx, orderID)
}

// AdminSetStatus 运维逃生通道：绕过状态机但必须是合法枚举值，单独审计
func (s *OrderService) AdminSetStatus(ctx context.Context, actor auth.Actor, orderID string, status model.OrderStatus) (*model.Order, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Wrap(model.ErrForbidden, "admin only")
	}
	if !status.Valid() {
		return nil, errors.Wrapf(model.ErrValidation, "unknown status %q", status)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.log.Warnf("[OrderService] admin %s overriding order %s status: %s -> %s", actor.ID, orderID, order.Status, status)

	matched, err := s.orders.Transition(ctx, &repository.StatusPatch{
		OrderID: orderID,
		To:      status,
		Audit: &model.StatusAudit{
			OrderID:    orderID,
			ActorID:    actor.ID,
			ActorRole:  string(actor.Role),
			FromStatus: order.Status,
			ToStatus:   status,
			Forced:     true,
		},
	})
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrapf(model.ErrNotFound, "order %s", orderID)
	}
	return s.orders.GetByID(ctx, orderID)
}

// AdminForceDeliver 跳过 OTP 的强制签收，单独审计
func (s *OrderService) AdminForceDeliver(ctx context.Context, actor auth.Actor, orderID string) (*model.Order, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Wrap(model.ErrForbidden, "admin only")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.log.Warnf("[OrderService] admin %s force-delivering order %s (was %s)", actor.ID, orderID, order.Status)

	now := time.Now()
	matched, err := s.orders.Transition(ctx, &repository.StatusPatch{
		OrderID: orderID,
		To:      model.OrderStatusDelivered,
		Fields: map[string]interface{}{
			"delivered_at":        now,
			"delivery_otp":        "",
			"delivery_otp_expiry": nil,
		},
		Audit: &model.StatusAudit{
			OrderID:    orderID,
			ActorID:    actor.ID,
			ActorRole:  string(actor.Role),
			FromStatus: order.Status,
			ToStatus:   model.OrderStatusDelivered,
			Forced:     true,
		},
	})
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrapf(model.ErrNotFound, "order %s", orderID)
	}
	return s.orders.GetByID(ctx, orderID)
}

func (s *OrderService) AuditTrail(ctx context.Context, actor auth.Actor, orderID string) ([]*model.StatusAudit, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Wrap(model.ErrForbidden, "admin only")
	}
	return s.orders.ListAudit(ctx, orderID)
}

func (s *OrderService) invalidateItems(ctx context.Context, items []model.OrderItem) {
	if s.inval == nil {
		return
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	s.inval.Invalidate(ctx, ids...)
}

func snapshotAddress(addr *model.Address) model.ShippingAddress {
	return model.ShippingAddress{
		Name:    addr.Name,
		Street:  addr.Street,
		City:    addr.City,
		State:   addr.State,
		Pincode: addr.Pincode,
		Phone:   addr.Phone,
		Country: "India",
	}
}
