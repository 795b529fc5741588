package models

import (
	"time"
)

type Permission string

const (
	PermissionUser             Permission = "USER"
	PermissionAdmin            Permission = "ADMIN"
	PermissionItemDelete       Permission = "ITEMDELETE"
	PermissionPermissionUpdate Permission = "PERMISSIONUPDATE"
)

// AllPermissions is the closed capability set; anything outside it is rejected
// on write so a typo can never silently disable a check.
var AllPermissions = []Permission{
	PermissionUser,
	PermissionAdmin,
	PermissionItemDelete,
	PermissionPermissionUpdate,
}

func ValidPermission(p Permission) bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

type User struct {
	ID               uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Email            string       `gorm:"unique;not null"          json:"email"`
	Name             string       `gorm:"not null"                 json:"name"`
	PasswordHash     string       `gorm:"not null"                 json:"-"`
	Permissions      []Permission `gorm:"serializer:json;not null" json:"permissions"`
	ResetToken       *string      `gorm:"index"                    json:"-"`
	ResetTokenExpiry *time.Time   `json:"-"`
}

type Item struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string `gorm:"not null"                 json:"title"`
	Description string `gorm:"not null"                 json:"description"`
	Image       string `json:"image"`
	Price       int64  `gorm:"not null"                 json:"price"`
	UserID      uint   `gorm:"index;not null"           json:"user_id"`
}

type CartItem struct {
	ID       uint `gorm:"primaryKey"                               json:"id"`
	UserID   uint `gorm:"index;not null;uniqueIndex:idx_user_item" json:"user_id"`
	ItemID   uint `gorm:"not null;uniqueIndex:idx_user_item"       json:"item_id"`
	Quantity uint `gorm:"default:1;check:quantity>0"               json:"quantity"`
	Item     Item `gorm:"foreignKey:ItemID"                        json:"item"`
}

const (
	OrderStatusPending         = "pending"
	OrderStatusCharged         = "charged"
	OrderStatusCompleted       = "completed"
	OrderStatusChargeAmbiguous = "charge_ambiguous"
	OrderStatusFailed          = "failed"
)

type Order struct {
	ID             uint        `gorm:"primaryKey"         json:"id"`
	UserID         uint        `gorm:"index;not null"     json:"user_id"`
	Total          int64       `gorm:"not null"           json:"total"`
	ChargeID       string      `json:"charge_id"`
	IdempotencyKey string      `gorm:"index"              json:"-"`
	Status         string      `gorm:"not null"           json:"status"`
	CreatedAt      int64       `gorm:"not null"           json:"created_at"`
	Items          []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem is a denormalized snapshot of the purchased Item. Later catalog
// edits must never alter a historical order, so everything except provenance
// is copied by value.
type OrderItem struct {
	ID          uint   `gorm:"primaryKey"                 json:"id"`
	OrderID     uint   `gorm:"index;not null"             json:"order_id"`
	UserID      uint   `gorm:"index;not null"             json:"user_id"`
	ItemID      uint   `gorm:"not null"                   json:"item_id"`
	Title       string `gorm:"not null"                   json:"title"`
	Description string `gorm:"not null"                   json:"description"`
	Image       string `json:"image"`
	Price       int64  `gorm:"not null"                   json:"price"`
	Quantity    uint   `gorm:"default:1;check:quantity>0" json:"quantity"`
}
