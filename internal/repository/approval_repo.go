package repository

import (
	"context"
	"time"

	"compugear/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalListFilter narrows an approval listing. Empty fields match everything.
type ApprovalListFilter struct {
	CompanyID    *uuid.UUID
	RequestedBy  *uuid.UUID
	Module       string
	Status       string
	RequestTypes []string
	Page         int
	Limit        int
}

// ApprovalTransition is the single write a pending request ever receives.
type ApprovalTransition struct {
	Status        string
	ApprovedBy    *uuid.UUID
	ApprovedAt    *time.Time
	ApprovalNotes string
}

type ApprovalRepository interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error)
	List(ctx context.Context, filter ApprovalListFilter) ([]model.ApprovalRequest, int64, error)
	CountPending(ctx context.Context, companyID *uuid.UUID) (int64, error)
	// TransitionFromPending moves a request out of PENDING only if it is still PENDING.
	// It returns false when another writer got there first.
	TransitionFromPending(ctx context.Context, id uuid.UUID, t ApprovalTransition) (bool, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, req *model.ApprovalRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	if err := GetDB(ctx, r.db).Preload("Requester").Preload("Approver").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) List(ctx context.Context, filter ApprovalListFilter) ([]model.ApprovalRequest, int64, error) {
	var requests []model.ApprovalRequest
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.CompanyID != nil {
			q = q.Where("company_id = ?", *filter.CompanyID)
		}
		if filter.RequestedBy != nil {
			q = q.Where("requested_by = ?", *filter.RequestedBy)
		}
		if filter.Module != "" {
			q = q.Where("module = ?", filter.Module)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if len(filter.RequestTypes) > 0 {
			q = q.Where("request_type IN ?", filter.RequestTypes)
		}
		return q
	}

	if err := scope(db.Model(&model.ApprovalRequest{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := scope(db.Preload("Requester").Preload("Approver")).
		Order("requested_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *approvalRepository) CountPending(ctx context.Context, companyID *uuid.UUID) (int64, error) {
	var count int64
	q := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).Where("status = ?", model.ApprovalPending)
	if companyID != nil {
		q = q.Where("company_id = ?", *companyID)
	}
	err := q.Count(&count).Error
	return count, err
}

func (r *approvalRepository) TransitionFromPending(ctx context.Context, id uuid.UUID, t ApprovalTransition) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).
		Where("id = ? AND status = ?", id, model.ApprovalPending).
		Updates(map[string]interface{}{
			"status":         t.Status,
			"approved_by":    t.ApprovedBy,
			"approved_at":    t.ApprovedAt,
			"approval_notes": t.ApprovalNotes,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *approvalRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true).Error
}

func (r *approvalRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).Where("request_code = ?", code).Count(&count).Error
	return count > 0, err
}
