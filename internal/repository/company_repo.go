package repository

import (
	"context"

	"compugear/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompanyRepository owns the tenant bundle: company, subscription and usage log rows.
type CompanyRepository interface {
	Create(ctx context.Context, company *model.Company) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error)
	FindByEmail(ctx context.Context, email string) (*model.Company, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CodeExists(ctx context.Context, code string) (bool, error)

	CreateSubscription(ctx context.Context, sub *model.CompanySubscription) error
	ActiveSubscription(ctx context.Context, companyID uuid.UUID) (*model.CompanySubscription, error)
	HasSubscription(ctx context.Context, companyID uuid.UUID) (bool, error)

	LogUsage(ctx context.Context, entry *model.PlatformUsageLog) error
}

type companyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *model.Company) error {
	return GetDB(ctx, r.db).Create(company).Error
}

func (r *companyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	if err := GetDB(ctx, r.db).First(&company, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) FindByEmail(ctx context.Context, email string) (*model.Company, error) {
	var company model.Company
	if err := GetDB(ctx, r.db).First(&company, "LOWER(email) = LOWER(?)", email).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Company{}).Where("LOWER(email) = LOWER(?)", email).Count(&count).Error
	return count > 0, err
}

func (r *companyRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Unscoped().Model(&model.Company{}).Where("company_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *companyRepository) CreateSubscription(ctx context.Context, sub *model.CompanySubscription) error {
	return GetDB(ctx, r.db).Create(sub).Error
}

func (r *companyRepository) ActiveSubscription(ctx context.Context, companyID uuid.UUID) (*model.CompanySubscription, error) {
	var sub model.CompanySubscription
	if err := GetDB(ctx, r.db).
		Where("company_id = ? AND status = ?", companyID, model.SubscriptionActive).
		Order("start_date desc").
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *companyRepository) HasSubscription(ctx context.Context, companyID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.CompanySubscription{}).Where("company_id = ?", companyID).Count(&count).Error
	return count > 0, err
}

func (r *companyRepository) LogUsage(ctx context.Context, entry *model.PlatformUsageLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}
