package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalRequestType enum constants
const (
	ApprovalReqTypeStockAdjustment = "STOCK_ADJUSTMENT"
	ApprovalReqTypeProductCreate   = "PRODUCT_CREATE"
	ApprovalReqTypeOrderCancel     = "ORDER_CANCEL"
	ApprovalReqTypeOrderRefund     = "ORDER_REFUND"
	ApprovalReqTypePaymentRefund   = "PAYMENT_REFUND"
	ApprovalReqTypeInvoiceVoid     = "INVOICE_VOID"
)

var knownRequestTypes = []string{
	ApprovalReqTypeStockAdjustment,
	ApprovalReqTypeProductCreate,
	ApprovalReqTypeOrderCancel,
	ApprovalReqTypeOrderRefund,
	ApprovalReqTypePaymentRefund,
	ApprovalReqTypeInvoiceVoid,
}

// CanonicalRequestType maps any spelling of a known request type ("StockAdjustment",
// "stock-adjustment", "STOCK_ADJUSTMENT") to its constant. Unknown types are upper-cased.
func CanonicalRequestType(raw string) string {
	key := requestTypeKey(raw)
	for _, t := range knownRequestTypes {
		if requestTypeKey(t) == key {
			return t
		}
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

func requestTypeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(s)))
}

// ApprovalStatus enum constants
const (
	ApprovalPending   = "PENDING"
	ApprovalApproved  = "APPROVED"
	ApprovalRejected  = "REJECTED"
	ApprovalCancelled = "CANCELLED"
)

// Priority enum constants
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// ApprovalRequest is a staff-proposed mutation that only takes effect once an admin approves it.
// Once Status leaves PENDING the row never changes again, except for IsRead.
type ApprovalRequest struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestCode   string     `gorm:"type:varchar(30);uniqueIndex;not null" json:"request_code"` // REQ-YYYYMMDD-XXXXXX
	CompanyID     *uuid.UUID `gorm:"type:uuid;index" json:"company_id"`
	RequestType   string     `gorm:"type:varchar(40);not null;index" json:"request_type"`
	Module        string     `gorm:"type:varchar(30);not null;index" json:"module"`
	Priority      string     `gorm:"type:varchar(10);not null;default:'NORMAL'" json:"priority"`
	Title         string     `gorm:"type:varchar(255);not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Reason        string     `gorm:"type:text" json:"reason"`
	EntityType    string     `gorm:"type:varchar(50)" json:"entity_type"`
	EntityID      string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName    string     `gorm:"type:varchar(255)" json:"entity_name"`
	RequestData   string     `gorm:"type:jsonb" json:"request_data"` // Typed per RequestType, see service payloads
	Status        string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	RequestedBy   uuid.UUID  `gorm:"type:uuid;not null;index" json:"requested_by"`
	Requester     *User      `gorm:"foreignKey:RequestedBy" json:"requester,omitempty"`
	RequestedAt   time.Time  `gorm:"not null" json:"requested_at"`
	ApprovedBy    *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	Approver      *User      `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at"`
	ApprovalNotes string     `gorm:"type:text" json:"approval_notes"`
	IsRead        bool       `gorm:"default:false" json:"is_read"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (a *ApprovalRequest) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
