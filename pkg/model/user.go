package model

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleDelivery, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	UserID   string `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Name     string `gorm:"type:varchar(128);not null" json:"name"`
	Email    string `gorm:"uniqueIndex;type:varchar(128);not null" json:"email"`
	Password string `gorm:"type:varchar(128);not null" json:"-"` // BCrypt 哈希
	Phone    string `gorm:"type:varchar(20)" json:"phone"`
	Role     Role   `gorm:"type:varchar(16);default:customer" json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Addresses []Address `gorm:"foreignKey:UserID;references:UserID" json:"addresses,omitempty"`
}

func (User) TableName() string {
	return "users"
}

const (
	AddressTypeHome  = "home"
	AddressTypeWork  = "work"
	AddressTypeOther = "other"
)

// Address 不变量：非空地址簿里有且只有一个 IsDefault=true
type Address struct {
	AddressID string `gorm:"primaryKey;type:varchar(64)" json:"address_id"`
	UserID    string `gorm:"type:varchar(64);index;not null" json:"-"`
	Name      string `gorm:"type:varchar(128);not null" json:"name"`
	Type      string `gorm:"type:varchar(8);default:home" json:"type"`
	Street    string `gorm:"type:varchar(255);not null" json:"street"`
	City      string `gorm:"type:varchar(64);not null" json:"city"`
	State     string `gorm:"type:varchar(64);not null" json:"state"`
	Pincode   string `gorm:"type:varchar(16);not null" json:"pincode"`
	Phone     string `gorm:"type:varchar(20);not null" json:"phone"`
	IsDefault bool   `json:"is_default"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Address) TableName() string {
	return "addresses"
}
