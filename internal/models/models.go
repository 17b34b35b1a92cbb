package models

import (
	"github.com/shopspring/decimal"
)

const (
	GroupManager      = "Manager"
	GroupDeliveryCrew = "Delivery Crew"
)

// Role is resolved once per request from the user's staff flag and group
// memberships, then carried through the request context.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleDeliveryCrew Role = "delivery_crew"
	RoleCustomer     Role = "customer"
)

type User struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string  `gorm:"unique;not null"          json:"username"`
	Email        string  `gorm:"not null"                 json:"email"`
	PasswordHash string  `gorm:"not null"                 json:"-"`
	IsStaff      bool    `gorm:"default:false"            json:"-"`
	Groups       []Group `gorm:"many2many:user_groups"    json:"-"`
}

// InGroup reports membership against preloaded Groups.
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

func (u *User) Role() Role {
	switch {
	case u.IsStaff:
		return RoleAdmin
	case u.InGroup(GroupManager):
		return RoleManager
	case u.InGroup(GroupDeliveryCrew):
		return RoleDeliveryCrew
	default:
		return RoleCustomer
	}
}

type Group struct {
	ID   uint   `gorm:"primaryKey"      json:"id"`
	Name string `gorm:"unique;not null" json:"name"`
}

type Category struct {
	ID    uint   `gorm:"primaryKey"      json:"id"`
	Slug  string `gorm:"unique;not null" json:"slug"`
	Title string `gorm:"not null"        json:"title"`
}

type MenuItem struct {
	ID         uint            `gorm:"primaryKey"        json:"id"`
	Title      string          `gorm:"not null"          json:"title"`
	Price      decimal.Decimal `gorm:"type:decimal(8,2)" json:"price"`
	Featured   bool            `gorm:"default:false"     json:"featured"`
	CategoryID uint            `gorm:"index;not null"    json:"category_id"`
	Category   *Category       `json:"category,omitempty"`
}

// CartLine holds one pending menu item for one user. UnitPrice snapshots
// MenuItem.Price at first add and never follows later menu price changes;
// Price is always Quantity * UnitPrice.
type CartLine struct {
	ID         uint            `gorm:"primaryKey"                              json:"id"`
	UserID     uint            `gorm:"uniqueIndex:idx_cart_user_item;not null" json:"user_id"`
	MenuItemID uint            `gorm:"uniqueIndex:idx_cart_user_item;not null" json:"menuitem"`
	MenuItem   *MenuItem       `json:"menuitem_detail,omitempty"`
	Quantity   uint            `gorm:"not null;check:quantity>0" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(8,2)"         json:"unit_price"`
	Price      decimal.Decimal `gorm:"type:decimal(8,2)"         json:"price"`
}

// Order is created atomically from a non-empty cart. Total is fixed at
// creation; Status is monotonic: once true the order is frozen.
type Order struct {
	ID             uint            `gorm:"primaryKey"         json:"id"`
	UserID         uint            `gorm:"index;not null"     json:"user"`
	DeliveryCrewID *uint           `gorm:"index"              json:"delivery_crew"`
	Status         bool            `gorm:"default:false"      json:"status"`
	Total          decimal.Decimal `gorm:"type:decimal(8,2)"  json:"total"`
	Date           string          `gorm:"type:date;not null" json:"date"`
	Lines          []OrderLine     `gorm:"constraint:OnDelete:CASCADE" json:"order_lines,omitempty"`
}

type OrderLine struct {
	ID         uint            `gorm:"primaryKey"                json:"id"`
	OrderID    uint            `gorm:"index;not null"            json:"order_id"`
	MenuItemID uint            `gorm:"not null"                  json:"menuitem"`
	Quantity   uint            `gorm:"not null;check:quantity>0" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(8,2)"         json:"unit_price"`
	Price      decimal.Decimal `gorm:"type:decimal(8,2)"         json:"price"`
}
