package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
)

// CartItemView 购物车行：Redis 里的数量 + 商品表里的展示数据
type CartItemView struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock"`
	InStock   bool    `json:"in_stock"`
	Subtotal  float64 `json:"subtotal"`
}

type CartView struct {
	Items      []CartItemView `json:"items"`
	ItemsTotal float64        `json:"items_total"`
}

type CartService struct {
	carts    repository.CartRepo
	products repository.ProductRepo
	log      *logrus.Logger
}

func NewCartService(carts repository.CartRepo, products repository.ProductRepo, log *logrus.Logger) *CartService {
	return &CartService{carts: carts, products: products, log: log}
}

// Get 商品已下架或删除的行直接从结果里剔除，只留可结算内容。
// InStock=false 的行保留展示但结账会被拒。
func (s *CartService) Get(ctx context.Context, actor auth.Actor) (*CartView, error) {
	items, err := s.carts.GetItems(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	view := &CartView{Items: []CartItemView{}}
	if len(items) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range products {
		if !p.IsActive {
			continue
		}
		qty := items[p.ProductID]
		row := CartItemView{
			ProductID: p.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     firstImage(p.Images),
			Quantity:  qty,
			Stock:     p.Stock,
			InStock:   p.Stock >= qty,
			Subtotal:  p.Price * float64(qty),
		}
		view.Items = append(view.Items, row)
		view.ItemsTotal += row.Subtotal
	}
	return view, nil
}

func (s *CartService) Add(ctx context.Context, actor auth.Actor, productID string, quantity int) error {
	if quantity <= 0 {
		return errors.Wrap(model.ErrValidation, "quantity must be positive")
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return errors.Wrapf(model.ErrNotFound, "product %s", productID)
	}
	return s.carts.AddItem(ctx, actor.ID, productID, quantity)
}

// SetQuantity 数量为 0 当作移除
func (s *CartService) SetQuantity(ctx context.Context, actor auth.Actor, productID string, quantity int) error {
	if quantity < 0 {
		return errors.Wrap(model.ErrValidation, "quantity cannot be negative")
	}
	if quantity == 0 {
		return s.carts.RemoveItem(ctx, actor.ID, productID)
	}
	return s.carts.SetQuantity(ctx, actor.ID, productID, quantity)
}

func (s *CartService) Remove(ctx context.Context, actor auth.Actor, productID string) error {
	return s.carts.RemoveItem(ctx, actor.ID, productID)
}

func (s *CartService) Clear(ctx context.Context, actor auth.Actor) error {
	return s.carts.Clear(ctx, actor.ID)
}
