package model

import "time"

const (
	VehicleBike    = "bike"
	VehicleCar     = "car"
	VehicleBicycle = "bicycle"
)

func ValidVehicleType(v string) bool {
	return v == VehicleBike || v == VehicleCar || v == VehicleBicycle
}

type DeliveryAgent struct {
	AgentID       string `gorm:"primaryKey;type:varchar(64)" json:"agent_id"`
	UserID        string `gorm:"uniqueIndex;type:varchar(64);not null" json:"user_id"`
	VehicleType   string `gorm:"type:varchar(16);not null" json:"vehicle_type"`
	VehicleNumber string `gorm:"uniqueIndex;type:varchar(32);not null" json:"vehicle_number"`
	LicenseNumber string `gorm:"uniqueIndex;type:varchar(32);not null" json:"license_number"`
	AadharNumber  string `gorm:"uniqueIndex;type:varchar(16);not null" json:"-"`
	Area          string `gorm:"type:varchar(128);not null" json:"area"`

	IsVerified  bool `gorm:"default:false" json:"is_verified"`
	IsAvailable bool `gorm:"default:true" json:"is_available"`

	Latitude  float64 `gorm:"type:decimal(10,7)" json:"latitude"`
	Longitude float64 `gorm:"type:decimal(10,7)" json:"longitude"`

	// AverageRating = Ratings 的算术平均，追加评分时在同一事务里重算
	AverageRating   float64 `gorm:"type:decimal(3,2)" json:"average_rating"`
	TotalDeliveries int     `gorm:"type:int" json:"total_deliveries"`
	ActiveOrderID   string  `gorm:"type:varchar(64)" json:"active_order_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Ratings []AgentRating `gorm:"foreignKey:AgentID;references:AgentID" json:"-"`
}

func (DeliveryAgent) TableName() string {
	return "delivery_agents"
}

type AgentRating struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	AgentID   string    `gorm:"type:varchar(64);index" json:"-"`
	OrderID   string    `gorm:"type:varchar(64)" json:"order_id"`
	Rating    int       `gorm:"type:int;not null" json:"rating"` // 1..5
	Comment   string    `gorm:"type:varchar(255)" json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (AgentRating) TableName() string {
	return "agent_ratings"
}
