package service

import (
	"context"
	"encoding/json"
	"fmt"

	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditEntry is one audit row before serialization.
type AuditEntry struct {
	CompanyID  *uuid.UUID
	UserID     *uuid.UUID
	Action     string
	EntityID   string
	EntityName string
	Details    map[string]interface{}
}

type AuditService interface {
	// Record writes the entry using the transaction carried by ctx, if any.
	Record(ctx context.Context, entry AuditEntry) error
	GetAuditLogs(ctx context.Context, rc model.RequestContext, action string, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) error {
	details := "{}"
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = string(raw)
	}

	row := model.AuditLog{
		CompanyID:  entry.CompanyID,
		UserID:     entry.UserID,
		Action:     entry.Action,
		EntityID:   entry.EntityID,
		EntityName: entry.EntityName,
		Details:    details,
	}
	if err := s.repo.Log(ctx, &row); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// GetAuditLogs is company-scoped for company admins and global for super admins.
func (s *auditService) GetAuditLogs(ctx context.Context, rc model.RequestContext, action string, page, limit int) ([]AuditLogResponse, int64, error) {
	if !rc.IsAdmin() {
		return nil, 0, fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	page, limit = normalizePage(page, limit)
	logs, total, err := s.repo.List(ctx, tenantFilter(rc), action, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
