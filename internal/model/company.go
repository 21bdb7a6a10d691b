package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Module codes
const (
	ModuleSales     = "SALES"
	ModuleInventory = "INVENTORY"
	ModuleBilling   = "BILLING"
	ModuleMarketing = "MARKETING"
	ModuleSupport   = "SUPPORT"
)

// ManagedModules are the module codes covered by the role-module access matrix.
var ManagedModules = []string{
	ModuleSales,
	ModuleInventory,
	ModuleBilling,
	ModuleMarketing,
	ModuleSupport,
}

// ModuleOwnerRole maps each module to the single staff role that works in it.
var ModuleOwnerRole = map[string]int{
	ModuleSales:     RoleSalesStaff,
	ModuleInventory: RoleInventoryStaff,
	ModuleBilling:   RoleBillingStaff,
	ModuleMarketing: RoleMarketingStaff,
	ModuleSupport:   RoleSupportStaff,
}

// Company / subscription status constants
const (
	CompanyStatusActive = "ACTIVE"

	SubscriptionActive    = "ACTIVE"
	SubscriptionCancelled = "CANCELLED"

	BillingCycleMonthly = "MONTHLY"
	BillingCycleAnnual  = "ANNUAL"
)

// Company is the tenant root.
type Company struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyCode string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"company_code"` // CG-YYYYMMDD-NNNN
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Email       string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone       string         `gorm:"type:varchar(30);not null" json:"phone"`
	Address     string         `gorm:"type:text" json:"address"`
	Industry    string         `gorm:"type:varchar(100)" json:"industry"`
	Status      string         `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// ERPModule is a purchasable feature bundle.
type ERPModule struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"code"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ERPModule) TableName() string { return "erp_modules" }

func (m *ERPModule) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// CompanySubscription records the plan a company pays for.
type CompanySubscription struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	PlanName         string          `gorm:"type:varchar(30);not null" json:"plan_name"`
	BillingCycle     string          `gorm:"type:varchar(20);not null;default:'MONTHLY'" json:"billing_cycle"`
	MonthlyFee       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"monthly_fee"`
	AmountPaid       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount_paid"`
	MaxUsers         int             `gorm:"not null" json:"max_users"`
	Status           string          `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	PaymentReference string          `gorm:"type:varchar(255)" json:"payment_reference"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (s *CompanySubscription) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// CompanyModuleAccess grants a company access to a module.
type CompanyModuleAccess struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_company_module,priority:1" json:"company_id"`
	ModuleID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_company_module,priority:2" json:"module_id"`
	Module      *ERPModule `gorm:"foreignKey:ModuleID" json:"module,omitempty"`
	IsEnabled   bool       `gorm:"default:true" json:"is_enabled"`
	ActivatedAt time.Time  `json:"activated_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (CompanyModuleAccess) TableName() string { return "company_module_access" }

func (a *CompanyModuleAccess) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// RoleModuleAccess is a per-tenant, per-role module gate.
type RoleModuleAccess struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_company_role_module,priority:1" json:"company_id"`
	RoleID     int       `gorm:"not null;uniqueIndex:uk_company_role_module,priority:2" json:"role_id"`
	ModuleCode string    `gorm:"type:varchar(30);not null;uniqueIndex:uk_company_role_module,priority:3" json:"module_code"`
	HasAccess  bool      `gorm:"not null;default:false" json:"has_access"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (RoleModuleAccess) TableName() string { return "role_module_access" }

func (a *RoleModuleAccess) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// Platform usage actions
const (
	UsageSubscriptionCreated = "SUBSCRIPTION_CREATED"
)

// PlatformUsageLog is the super-admin facing audit trail of tenant lifecycle events.
type PlatformUsageLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	Action    string    `gorm:"type:varchar(50);not null;index" json:"action"`
	Details   string    `gorm:"type:jsonb" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (l *PlatformUsageLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}
