package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
)

const lowStockThreshold = 10

type ProductImage struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type ProductInput struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          float64           `json:"price"`
	OriginalPrice  float64           `json:"original_price"`
	Category       string            `json:"category"`
	Brand          string            `json:"brand"`
	Stock          *int              `json:"stock"`
	Images         []ProductImage    `json:"images"`
	Specifications map[string]string `json:"specifications"`
	Features       []string          `json:"features"`
	Warranty       string            `json:"warranty"`
	ReturnPolicy   string            `json:"return_policy"`
	DeliveryTime   string            `json:"delivery_time"`
}

// SellerOrder 卖家视角的订单投影：只含该卖家自己的行项目和小计，
// 不暴露其他卖家的商品与金额。
type SellerOrder struct {
	OrderID         string                `json:"order_id"`
	OrderNumber     string                `json:"order_number"`
	Status          model.OrderStatus     `json:"status"`
	PaymentMethod   string                `json:"payment_method"`
	PaymentStatus   string                `json:"payment_status"`
	TrackingNumber  string                `json:"tracking_number,omitempty"`
	DeliveryAgentID string                `json:"delivery_agent_id,omitempty"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	Items           []model.OrderItem     `json:"items"`
	SellerTotal     float64               `json:"seller_total"`
	CreatedAt       time.Time             `json:"created_at"`
}

type Dashboard struct {
	TotalProducts int64            `json:"total_products"`
	TotalOrders   int64            `json:"total_orders"`
	TotalRevenue  float64          `json:"total_revenue"`
	RecentOrders  []SellerOrder    `json:"recent_orders"`
	LowStock      []*model.Product `json:"low_stock_products"`
}

type SellerService struct {
	products repository.ProductRepo
	orders   repository.OrderRepo
	agents   repository.AgentRepo
	notifier Notifier
	log      *logrus.Logger
}

func NewSellerService(
	products repository.ProductRepo,
	orders repository.OrderRepo,
	agents repository.AgentRepo,
	notifier Notifier,
	log *logrus.Logger,
) *SellerService {
	return &SellerService{
		products: products,
		orders:   orders,
		agents:   agents,
		notifier: notifier,
		log:      log,
	}
}

func (s *SellerService) CreateProduct(ctx context.Context, actor auth.Actor, in ProductInput) (*model.Product, error) {
	if err := auth.Can(actor, auth.ActionProductManage, auth.OrderRef{}); err != nil {
		return nil, err
	}
	if in.Name == "" || in.Description == "" {
		return nil, errors.Wrap(model.ErrValidation, "name and description are required")
	}
	if in.Price <= 0 {
		return nil, errors.Wrap(model.ErrValidation, "price must be positive")
	}
	stock := 0
	if in.Stock != nil {
		stock = *in.Stock
	}
	if stock < 0 {
		return nil, errors.Wrap(model.ErrValidation, "stock must not be negative")
	}

	now := time.Now()
	p := &model.Product{
		ProductID:      uuid.New().String(),
		SellerID:       actor.ID,
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		OriginalPrice:  in.OriginalPrice,
		Category:       in.Category,
		Brand:          in.Brand,
		Images:         marshalJSON(in.Images),
		Specifications: marshalJSON(in.Specifications),
		Features:       marshalJSON(in.Features),
		Stock:          stock,
		SKU:            model.NewSKU(actor.ID, now),
		Warranty:       defaultStr(in.Warranty, "No warranty"),
		ReturnPolicy:   defaultStr(in.ReturnPolicy, "7 days return policy"),
		DeliveryTime:   defaultStr(in.DeliveryTime, "3-5 days"),
		IsActive:       true,
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProduct 部分合并：零值字段保持原样（和原有前端契约一致）
func (s *SellerService) UpdateProduct(ctx context.Context, actor auth.Actor, productID string, in ProductInput) (*model.Product, error) {
	p, err := s.ownedProduct(ctx, actor, productID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Description != "" {
		p.Description = in.Description
	}
	if in.Price > 0 {
		p.Price = in.Price
	}
	if in.OriginalPrice > 0 {
		p.OriginalPrice = in.OriginalPrice
	}
	if in.Category != "" {
		p.Category = in.Category
	}
	if in.Brand != "" {
		p.Brand = in.Brand
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, errors.Wrap(model.ErrValidation, "stock must not be negative")
		}
		p.Stock = *in.Stock
	}
	if len(in.Images) > 0 {
		p.Images = marshalJSON(in.Images)
	}
	if in.Specifications != nil {
		p.Specifications = marshalJSON(in.Specifications)
	}
	if in.Features != nil {
		p.Features = marshalJSON(in.Features)
	}
	if in.Warranty != "" {
		p.Warranty = in.Warranty
	}
	if in.ReturnPolicy != "" {
		p.ReturnPolicy = in.ReturnPolicy
	}
	if in.DeliveryTime != "" {
		p.DeliveryTime = in.DeliveryTime
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SellerService) DeleteProduct(ctx context.Context, actor auth.Actor, productID string) error {
	if _, err := s.ownedProduct(ctx, actor, productID); err != nil {
		return err
	}
	return s.products.Delete(ctx, productID)
}

func (s *SellerService) ListProducts(ctx context.Context, actor auth.Actor, page, limit int) ([]*model.Product, int64, error) {
	if err := auth.Can(actor, auth.ActionProductManage, auth.OrderRef{}); err != nil {
		return nil, 0, err
	}
	offset, limit := pageOffset(page, limit, 10)
	return s.products.ListBySeller(ctx, actor.ID, offset, limit)
}

func (s *SellerService) LowStock(ctx context.Context, actor auth.Actor) ([]*model.Product, error) {
	if err := auth.Can(actor, auth.ActionProductManage, auth.OrderRef{}); err != nil {
		return nil, err
	}
	return s.products.LowStock(ctx, actor.ID, lowStockThreshold)
}

// Orders 卖家订单列表：含 >=1 件该卖家商品的订单，行项目过滤到自己的
func (s *SellerService) Orders(ctx context.Context, actor auth.Actor, page, limit int) ([]SellerOrder, int64, error) {
	if err := auth.Can(actor, auth.ActionProductManage, auth.OrderRef{}); err != nil {
		return nil, 0, err
	}
	offset, limit := pageOffset(page, limit, 10)
	orders, total, err := s.orders.ListBySeller(ctx, actor.ID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	projected := make([]SellerOrder, 0, len(orders))
	for _, o := range orders {
		projected = append(projected, projectForSeller(o, actor.ID))
	}
	return projected, total, nil
}

func (s *SellerService) Dashboard(ctx context.Context, actor auth.Actor) (*Dashboard, error) {
	if err := auth.Can(actor, auth.ActionProductManage, auth.OrderRef{}); err != nil {
		return nil, err
	}

	_, totalProducts, err := s.products.ListBySeller(ctx, actor.ID, 0, 1)
	if err != nil {
		return nil, err
	}
	totalOrders, err := s.orders.CountBySeller(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	revenue, err := s.orders.RevenueBySeller(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.orders.ListBySeller(ctx, actor.ID, 0, 5)
	if err != nil {
		return nil, err
	}
	low, err := s.products.LowStock(ctx, actor.ID, lowStockThreshold)
	if err != nil {
		return nil, err
	}

	recentProjected := make([]SellerOrder, 0, len(recent))
	for _, o := range recent {
		recentProjected = append(recentProjected, projectForSeller(o, actor.ID))
	}

	return &Dashboard{
		TotalProducts: totalProducts,
		TotalOrders:   totalOrders,
		TotalRevenue:  revenue,
		RecentOrders:  recentProjected,
		LowStock:      low,
	}, nil
}

// Accept pending -> confirmed
func (s *SellerService) Accept(ctx context.Context, actor auth.Actor, orderID string) (*model.Order, error) {
	order, err := s.authorizedOrder(ctx, actor, auth.ActionOrderAccept, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, errors.Wrapf(model.ErrInvalidTransition, "cannot accept order in status %s", order.Status)
	}

	matched, err := s.orders.Transition(ctx, &repository.StatusPatch{
		OrderID: orderID,
		From:    []model.OrderStatus{model.OrderStatusPending},
		To:      model.OrderStatusConfirmed,
		Audit:   s.audit(actor, order, model.OrderStatusConfirmed),
	})
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrap(model.ErrInvalidTransition, "order is no longer pending")
	}

	s.notifier.Notify(ctx, model.OrderEvent{
		Type:        model.EventOrderConfirmed,
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		RecipientID: order.UserID,
	})
	return s.orders.GetByID(ctx, orderID)
}

// Ship confirmed -> shipped，挂运单号
func (s *SellerService) Ship(ctx context.Context, actor auth.Actor, orderID, trackingNumber string) (*model.Order, error) {
	if trackingNumber == "" {
		return nil, errors.Wrap(model.ErrValidation, "tracking number is required")
	}

	order, err := s.authorizedOrder(ctx, actor, auth.ActionOrderShip, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusConfirmed {
		return nil, errors.Wrapf(model.ErrInvalidTransition, "cannot ship order in status %s", order.Status)
	}

	matched, err := s.orders.Transition(ctx, &repository.StatusPatch{
		OrderID: orderID,
		From:    []model.OrderStatus{model.OrderStatusConfirmed},
		To:      model.OrderStatusShipped,
		Fields:  map[string]interface{}{"tracking_number": trackingNumber},
		Audit:   s.audit(actor, order, model.OrderStatusShipped),
	})
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrap(model.ErrInvalidTransition, "order is no longer confirmed")
	}

	s.notifier.Notify(ctx, model.OrderEvent{
		Type:        model.EventOrderShipped,
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		RecipientID: order.UserID,
		Data:        map[string]string{"tracking_number": trackingNumber},
	})
	return s.orders.GetByID(ctx, orderID)
}

// AssignAgent 状态不变（仍是 shipped），只挂骑手并占用其在途位
func (s *SellerService) AssignAgent(ctx context.Context, actor auth.Actor, orderID, agentID string) (*model.Order, error) {
	order, err := s.authorizedOrder(ctx, actor, auth.ActionOrderAssign, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusShipped {
		return nil, errors.Wrapf(model.ErrInvalidTransition, "cannot assign delivery for order in status %s", order.Status)
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.IsVerified || !agent.IsAvailable {
		return nil, errors.Wrap(model.ErrValidation, "delivery agent is not available")
	}

	matched, err := s.orders.AssignAgent(ctx, orderID, agentID)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrap(model.ErrInvalidTransition, "order is no longer shipped")
	}

	s.notifier.Notify(ctx, model.OrderEvent{
		Type:        model.EventDeliveryAssigned,
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		RecipientID: agent.UserID,
	})
	return s.orders.GetByID(ctx, orderID)
}

// CancelBySeller pending/confirmed 可取消，只回补该卖家自己的行项目
func (s *SellerService) CancelBySeller(ctx context.Context, actor auth.Actor, orderID, reason string) (*model.Order, error) {
	order, err := s.authorizedOrder(ctx, actor, auth.ActionSellerCancel, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending && order.Status != model.OrderStatusConfirmed {
		return nil, errors.Wrapf(model.ErrInvalidTransition, "cannot cancel order in status %s", order.Status)
	}

	notes := reason
	if notes == "" {
		notes = "Cancelled by seller"
	}

	matched, err := s.orders.CancelRestocking(ctx, &repository.StatusPatch{
		OrderID: orderID,
		From:    []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed},
		To:      model.OrderStatusCancelled,
		Fields:  map[string]interface{}{"notes": notes},
		Audit:   s.audit(actor, order, model.OrderStatusCancelled),
	}, order.ItemsFor(actor.ID))
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrap(model.ErrInvalidTransition, "order is no longer cancellable")
	}

	s.notifier.Notify(ctx, model.OrderEvent{
		Type:        model.EventOrderCancelled,
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		RecipientID: order.UserID,
		Data:        map[string]string{"reason": notes},
	})
	return s.orders.GetByID(ctx, orderID)
}

func (s *SellerService) authorizedOrder(ctx context.Context, actor auth.Actor, action auth.Action, orderID string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := auth.Can(actor, action, auth.RefForOrder(order)); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *SellerService) audit(actor auth.Actor, order *model.Order, to model.OrderStatus) *model.StatusAudit {
	return &model.StatusAudit{
		OrderID:    order.OrderID,
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		FromStatus: order.Status,
		ToStatus:   to,
	}
}

func projectForSeller(o *model.Order, sellerID string) SellerOrder {
	return SellerOrder{
		OrderID:         o.OrderID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		TrackingNumber:  o.TrackingNumber,
		DeliveryAgentID: o.DeliveryAgentID,
		ShippingAddress: o.ShippingAddress,
		Items:           o.ItemsFor(sellerID),
		SellerTotal:     o.SubtotalFor(sellerID),
		CreatedAt:       o.CreatedAt,
	}
}

func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func firstImage(imagesJSON string) string {
	var images []ProductImage
	if err := json.Unmarshal([]byte(imagesJSON), &images); err != nil || len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func pageOffset(page, limit, defLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = defLimit
	}
	return (page - 1) * limit, limit
}

func (s *SellerService) ownedProduct(ctx context.Context, actor auth.Actor, productID string) (*model.Product, error) {
	if err := auth.Can(actor, auth.ActionProductManage, auth.OrderRef{}); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.SellerID != actor.ID {
		return nil, errors.Wrap(model.ErrForbidden, "product belongs to another seller")
	}
	return p, nil
}
