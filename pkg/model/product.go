package model

import (
	"fmt"
	"time"
)

type Product struct {
	ProductID     string  `gorm:"primaryKey;type:varchar(64)" json:"product_id"`
	SellerID      string  `gorm:"type:varchar(64);index" json:"seller_id"`
	Name          string  `gorm:"type:varchar(255);not null" json:"name"`
	Description   string  `gorm:"type:text" json:"description"`
	Price         float64 `gorm:"type:decimal(12,2)" json:"price"`
	OriginalPrice float64 `gorm:"type:decimal(12,2)" json:"original_price"`
	Category      string  `gorm:"type:varchar(64);index" json:"category"`
	Brand         string  `gorm:"type:varchar(64)" json:"brand"`

	// JSON 序列化存储，读写都走 model 层不做结构化查询
	Images         string `gorm:"type:text" json:"images"`
	Specifications string `gorm:"type:text" json:"specifications"`
	Features       string `gorm:"type:text" json:"features"`

	// Stock 只通过条件更新变更，任何路径都不允许读-改-写
	Stock int    `gorm:"type:int;not null" json:"stock"`
	SKU   string `gorm:"uniqueIndex;type:varchar(64)" json:"sku"`

	Rating      float64 `gorm:"type:decimal(3,2)" json:"rating"`
	ReviewCount int     `gorm:"type:int" json:"review_count"`

	Warranty     string `gorm:"type:varchar(255)" json:"warranty"`
	ReturnPolicy string `gorm:"type:varchar(255)" json:"return_policy"`
	DeliveryTime string `gorm:"type:varchar(64)" json:"delivery_time"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// NewSKU 卖家ID后6位 + 毫秒时间戳
func NewSKU(sellerID string, now time.Time) string {
	suffix := sellerID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("%s-%d", suffix, now.UnixMilli())
}
