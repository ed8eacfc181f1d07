package service

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
)

// InvoiceRenderer 具体排版交给外部实现，这里只负责准入
type InvoiceRenderer interface {
	Render(ctx context.Context, order *model.Order) ([]byte, string, error)
}

type InvoiceService struct {
	orders   repository.OrderRepo
	renderer InvoiceRenderer
	log      *logrus.Logger
}

func NewInvoiceService(orders repository.OrderRepo, renderer InvoiceRenderer, log *logrus.Logger) *InvoiceService {
	return &InvoiceService{orders: orders, renderer: renderer, log: log}
}

// Get 只有已签收订单才有发票，未到 delivered 一律拒绝
func (s *InvoiceService) Get(ctx context.Context, actor auth.Actor, orderID string) ([]byte, string, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if err := auth.Can(actor, auth.ActionInvoiceView, auth.RefForOrder(order)); err != nil {
		return nil, "", err
	}
	if order.Status != model.OrderStatusDelivered {
		return nil, "", errors.Wrap(model.ErrInvalidTransition, "invoice is available only after delivery")
	}
	return s.renderer.Render(ctx, order)
}

// JSONInvoiceRenderer 默认实现：结构化发票数据，下游自行排版
type JSONInvoiceRenderer struct{}

func (JSONInvoiceRenderer) Render(_ context.Context, order *model.Order) ([]byte, string, error) {
	data, err := json.Marshal(map[string]interface{}{
		"invoice_number": "INV-" + order.OrderNumber,
		"order_number":   order.OrderNumber,
		"order_date":     order.CreatedAt,
		"delivered_at":   order.DeliveredAt,
		"items":          order.Items,
		"items_total":    order.ItemsTotal,
		"tax_amount":     order.TaxAmount,
		"shipping":       order.ShippingAmount,
		"total_amount":   order.TotalAmount,
		"payment_method": order.PaymentMethod,
		"ship_to":        order.ShippingAddress,
	})
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}
