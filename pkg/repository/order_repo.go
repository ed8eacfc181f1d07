package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/techimanshu8/flipkart/pkg/model"
)

// StatusPatch 描述一次受状态机约束的条件更新。
// From 为空表示不限制来源状态（仅 admin override 使用）。
type StatusPatch struct {
	OrderID string
	From    []model.OrderStatus
	To      model.OrderStatus
	Fields  map[string]interface{}
	Audit   *model.StatusAudit
}

type OrderRepo interface {
	// Create 在单个事务内完成逐项库存条件扣减和订单落库，
	// 任何一项库存不足则整单回滚，不留下部分扣减。
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	ListAll(ctx context.Context, offset, limit int) ([]*model.Order, int64, error)
	ListBySeller(ctx context.Context, sellerID string, offset, limit int) ([]*model.Order, int64, error)

	// Transition 按 WHERE status IN (from) 条件更新，返回是否命中。
	Transition(ctx context.Context, p *StatusPatch) (bool, error)
	CancelRestocking(ctx context.Context, p *StatusPatch, restock []model.OrderItem) (bool, error)
	AssignAgent(ctx context.Context, orderID, agentID string) (bool, error)
	MarkPaid(ctx context.Context, orderID, userID, paymentRef string, now time.Time) (bool, error)

	SetOTP(ctx context.Context, orderID, code string, expiry time.Time) (bool, error)
	RecordOTPFailure(ctx context.Context, orderID string, attempt *model.DeliveryAttempt) error
	// CompleteDelivery 把 OTP 比对放进条件更新本身，两个并发提交最多一个命中。
	CompleteDelivery(ctx context.Context, orderID, code, agentID string, now time.Time,
		attempt *model.DeliveryAttempt, audit *model.StatusAudit) (bool, error)

	CountBySeller(ctx context.Context, sellerID string) (int64, error)
	RevenueBySeller(ctx context.Context, sellerID string) (float64, error)
	ListAudit(ctx context.Context, orderID string) ([]*model.StatusAudit, error)
	ListForAgent(ctx context.Context, agentID string, status model.OrderStatus) ([]*model.Order, error)
}

type mysqlOrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepo {
	return &mysqlOrderRepo{db: db}
}

func (r *mysqlOrderRepo) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 逐项条件扣减：stock >= qty 才扣，防止并发超卖
		for _, it := range order.Items {
			res := tx.Model(&model.Product{}).
				Where("product_id = ? AND is_active = ? AND stock >= ?", it.ProductID, true, it.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errors.Wrapf(model.ErrInsufficientStock, "product %s", it.ProductID)
			}
		}

		// 2. 订单 + 行项目落库
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		// 3. 审计（创建视为 ""->pending）
		audit := &model.StatusAudit{
			OrderID:   order.OrderID,
			ActorID:   order.UserID,
			ActorRole: string(model.RoleCustomer),
			ToStatus:  model.OrderStatusPending,
		}
		return tx.Create(audit).Error
	})
}

func (r *mysqlOrderRepo) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Attempts").
		Where("order_id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(model.ErrNotFound, "order %s", orderID)
		}
		return nil, err
	}
	return &order, nil
}

func (r *mysqlOrderRepo) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(50).
		Find(&orders).Error
	return orders, err
}

func (r *mysqlOrderRepo) ListAll(ctx context.Context, offset, limit int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

// ListBySeller 行项目里快照了 seller_id，直接 join 不需要回查商品表
func (r *mysqlOrderRepo) ListBySeller(ctx context.Context, sellerID string, offset, limit int) ([]*model.Order, int64, error) {
	sub := r.db.Model(&model.OrderItem{}).
		Select("DISTINCT order_id").
		Where("seller_id = ?", sellerID)

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id IN (?)", sub).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id IN (?)", sub).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

func (r *mysqlOrderRepo) Transition(ctx context.Context, p *StatusPatch) (bool, error) {
	var matched bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": p.To}
		for k, v := range p.Fields {
			updates[k] = v
		}

		q := tx.Model(&model.Order{}).Where("order_id = ?", p.OrderID)
		if len(p.From) > 0 {
			q = q.Where("status IN ?", p.From)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		matched = true

		if p.Audit != nil {
			return tx.Create(p.Audit).Error
		}
		return nil
	})
	return matched, err
}

func (r *mysqlOrderRepo) CancelRestocking(ctx context.Context, p *StatusPatch, restock []model.OrderItem) (bool, error) {
	var matched bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": model.OrderStatusCancelled}
		for k, v := range p.Fields {
			updates[k] = v
		}

		// 状态条件更新先行：已取消的订单不会二次回补库存
		res := tx.Model(&model.Order{}).
			Where("order_id = ? AND status IN ?", p.OrderID, p.From).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		matched = true

		for _, it := range restock {
			if err := tx.Model(&model.Product{}).
				Where("product_id = ?", it.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error; err != nil {
				return err
			}
		}

		if p.Audit != nil {
			return tx.Create(p.Audit).Error
		}
		return nil
	})
	return matched, err
}

func (r *mysqlOrderRepo) AssignAgent(ctx context.Context, orderID, agentID string) (bool, error) {
	var matched bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("order_id = ? AND status = ?", orderID, model.OrderStatusShipped).
			Update("delivery_agent_id", agentID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		matched = true

		return tx.Model(&model.DeliveryAgent{}).
			Where("agent_id = ?", agentID).
			Update("active_order_id", orderID).Error
	})
	return matched, err
}

func (r *mysqlOrderRepo) MarkPaid(ctx context.Context, orderID, userID, paymentRef string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ? AND user_id = ? AND is_paid = ?", orderID, userID, false).
		Updates(map[string]interface{}{
			"is_paid":        true,
			"paid_at":        now,
			"payment_status": model.PaymentStatusCompleted,
			"payment_ref":    paymentRef,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *mysqlOrderRepo) SetOTP(ctx context.Context, orderID, code string, expiry time.Time) (bool, error) {
	// 状态前置条件放进 WHERE，两个并发生成最多一个生效的新码留存
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ? AND status = ?", orderID, model.OrderStatusOutForDelivery).
		Updates(map[string]interface{}{
			"delivery_otp":          code,
			"delivery_otp_expiry":   expiry,
			"delivery_otp_attempts": 0,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *mysqlOrderRepo) RecordOTPFailure(ctx context.Context, orderID string, attempt *model.DeliveryAttempt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Order{}).
			Where("order_id = ?", orderID).
			UpdateColumn("delivery_otp_attempts", gorm.Expr("delivery_otp_attempts + 1")).Error; err != nil {
			return err
		}
		return tx.Create(attempt).Error
	})
}

func (r *mysqlOrderRepo) CompleteDelivery(ctx context.Context, orderID, code, agentID string, now time.Time,
	attempt *model.DeliveryAttempt, audit *model.StatusAudit) (bool, error) {
	var matched bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("order_id = ? AND status = ? AND delivery_otp = ? AND delivery_otp <> ''",
				orderID, model.OrderStatusOutForDelivery, code).
			Updates(map[string]interface{}{
				"status":              model.OrderStatusDelivered,
				"delivered_at":        now,
				"delivery_otp":        "",
				"delivery_otp_expiry": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		matched = true

		if err := tx.Create(attempt).Error; err != nil {
			return err
		}

		// 骑手统计：完成数 +1，清空在途订单
		if err := tx.Model(&model.DeliveryAgent{}).
			Where("agent_id = ?", agentID).
			Updates(map[string]interface{}{
				"total_deliveries": gorm.Expr("total_deliveries + 1"),
				"active_order_id":  "",
			}).Error; err != nil {
			return err
		}

		return tx.Create(audit).Error
	})
	return matched, err
}

func (r *mysqlOrderRepo) CountBySeller(ctx context.Context, sellerID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Distinct("order_id").
		Where("seller_id = ?", sellerID).
		Count(&total).Error
	return total, err
}

// RevenueBySeller 只累计该卖家自己的行项目金额，排除已取消订单
func (r *mysqlOrderRepo) RevenueBySeller(ctx context.Context, sellerID string) (float64, error) {
	var revenue float64
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Select("COALESCE(SUM(order_items.price * order_items.quantity), 0)").
		Joins("JOIN orders ON orders.order_id = order_items.order_id").
		Where("order_items.seller_id = ? AND orders.status <> ?", sellerID, model.OrderStatusCancelled).
		Scan(&revenue).Error
	return revenue, err
}

func (r *mysqlOrderRepo) ListAudit(ctx context.Context, orderID string) ([]*model.StatusAudit, error) {
	var audits []*model.StatusAudit
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&audits).Error
	return audits, err
}

func (r *mysqlOrderRepo) ListForAgent(ctx context.Context, agentID string, status model.OrderStatus) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("delivery_agent_id = ? AND status = ?", agentID, status).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}
