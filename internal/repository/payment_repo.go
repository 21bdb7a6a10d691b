package repository

import (
	"context"

	"compugear/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	CreateRefund(ctx context.Context, refund *model.Refund) error
	ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]model.Refund, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) CreateRefund(ctx context.Context, refund *model.Refund) error {
	return GetDB(ctx, r.db).Create(refund).Error
}

func (r *paymentRepository) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]model.Refund, error) {
	var refunds []model.Refund
	if err := GetDB(ctx, r.db).Where("payment_id = ?", paymentID).Order("created_at asc").Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}
