package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/techimanshu8/flipkart/pkg/model"
)

type ProductRepo interface {
	Create(ctx context.Context, p *model.Product) error
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, productID string) error
	GetByID(ctx context.Context, productID string) (*model.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.Product, error)
	List(ctx context.Context, offset, limit int) ([]*model.Product, int64, error)
	ListBySeller(ctx context.Context, sellerID string, offset, limit int) ([]*model.Product, int64, error)
	LowStock(ctx context.Context, sellerID string, threshold int) ([]*model.Product, error)
}

type mysqlProductRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepo {
	return &mysqlProductRepo{db: db}
}

func (r *mysqlProductRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update 不触碰 stock：库存只允许订单事务里的条件更新修改
func (r *mysqlProductRepo) Update(ctx context.Context, p *model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("product_id = ?", p.ProductID).
		Updates(map[string]interface{}{
			"name":           p.Name,
			"description":    p.Description,
			"price":          p.Price,
			"original_price": p.OriginalPrice,
			"category":       p.Category,
			"brand":          p.Brand,
			"images":         p.Images,
			"specifications": p.Specifications,
			"features":       p.Features,
			"stock":          p.Stock,
			"warranty":       p.Warranty,
			"return_policy":  p.ReturnPolicy,
			"delivery_time":  p.DeliveryTime,
			"is_active":      p.IsActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(model.ErrNotFound, "product %s", p.ProductID)
	}
	return nil
}

func (r *mysqlProductRepo) Delete(ctx context.Context, productID string) error {
	res := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&model.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(model.ErrNotFound, "product %s", productID)
	}
	return nil
}

func (r *mysqlProductRepo) GetByID(ctx context.Context, productID string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(model.ErrNotFound, "product %s", productID)
		}
		return nil, err
	}
	return &p, nil
}

func (r *mysqlProductRepo) GetByIDs(ctx context.Context, ids []string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).Where("product_id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *mysqlProductRepo) List(ctx context.Context, offset, limit int) ([]*model.Product, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error
	return products, total, err
}

func (r *mysqlProductRepo) ListBySeller(ctx context.Context, sellerID string, offset, limit int) ([]*model.Product, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("seller_id = ?", sellerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error
	return products, total, err
}

func (r *mysqlProductRepo) LowStock(ctx context.Context, sellerID string, threshold int) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Select("product_id", "name", "stock").
		Where("seller_id = ? AND stock < ?", sellerID, threshold).
		Limit(10).
		Find(&products).Error
	return products, err
}
