package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants
const (
	InvoiceStatusDraft     = "DRAFT"
	InvoiceStatusIssued    = "ISSUED"
	InvoiceStatusPaid      = "PAID"
	InvoiceStatusCancelled = "CANCELLED"
)

// Invoice is a billing document issued to a customer.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     *uuid.UUID      `gorm:"type:uuid;index" json:"company_id"`
	InvoiceNumber string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_number"`
	OrderID       *uuid.UUID      `gorm:"type:uuid;index" json:"order_id"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status        string          `gorm:"type:varchar(20);not null;default:'ISSUED';index" json:"status"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// PaymentStatus / RefundStatus enum constants
const (
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusRefunded  = "REFUNDED"

	RefundStatusCompleted = "COMPLETED"
)

// Payment is money received against an order.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     *uuid.UUID      `gorm:"type:uuid;index" json:"company_id"`
	PaymentNumber string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"payment_number"`
	OrderID       *uuid.UUID      `gorm:"type:uuid;index" json:"order_id"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Status        string          `gorm:"type:varchar(20);not null;default:'COMPLETED'" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Refund returns money from a payment.
type Refund struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RefundNumber      string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"refund_number"`
	PaymentID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"payment_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Reason            string          `gorm:"type:text" json:"reason"`
	Status            string          `gorm:"type:varchar(20);not null" json:"status"`
	ApprovalRequestID *uuid.UUID      `gorm:"type:uuid;index" json:"approval_request_id"`
	ProcessedBy       *uuid.UUID      `gorm:"type:uuid" json:"processed_by"`
	ProcessedAt       *time.Time      `json:"processed_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}
