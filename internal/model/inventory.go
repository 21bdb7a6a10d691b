package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents an item in a company's inventory
type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_products_company_sku" json:"company_id"`
	SKU           string          `gorm:"type:varchar(100);uniqueIndex:idx_products_company_sku;not null" json:"sku"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	StockQuantity int             `gorm:"type:int;default:0;not null" json:"stock_quantity"`
	Price         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Stock adjustment directions
const (
	AdjustmentAdd    = "Add"
	AdjustmentDeduct = "Deduct"
)

// TransactionType Enum Simulation
const (
	TxTypeIn         = "IN"
	TxTypeOut        = "OUT"
	TxTypeAdjustment = "ADJUSTMENT"
)

// InventoryTransaction records every stock change with before/after values
type InventoryTransaction struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	TransactionType   string     `gorm:"type:varchar(20);not null" json:"transaction_type"`
	Quantity          int        `gorm:"type:int;not null" json:"quantity"`
	PreviousStock     int        `gorm:"type:int;not null" json:"previous_stock"`
	NewStock          int        `gorm:"type:int;not null" json:"new_stock"`
	ApprovalRequestID *uuid.UUID `gorm:"type:uuid;index" json:"approval_request_id"`
	Notes             string     `gorm:"type:text" json:"notes"`
	CreatedBy         *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (t *InventoryTransaction) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// OrderStatus constants
const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// Order represents a sales order
type Order struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   *uuid.UUID      `gorm:"type:uuid;index" json:"company_id"`
	OrderNumber string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_number"`
	Status      string          `gorm:"type:varchar(30);not null;default:'PENDING'" json:"status"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_amount"`
	Notes       string          `gorm:"type:text" json:"notes"`
	CancelledAt *time.Time      `json:"cancelled_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	return nil
}
