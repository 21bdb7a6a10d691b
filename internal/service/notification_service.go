package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"compugear/internal/metrics"
	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notice is the content of a notification before it is addressed.
type Notice struct {
	Title   string
	Message string
	Type    string
	Link    string
}

// Pusher delivers a serialized notification to a connected user.
type Pusher interface {
	SendToUser(userID uuid.UUID, message []byte)
}

type NotificationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Link      string `json:"link"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// NotificationService is best-effort: the Notify methods log failures and never return them.
type NotificationService interface {
	NotifyAdmins(ctx context.Context, companyID *uuid.UUID, n Notice)
	NotifyUser(ctx context.Context, userID uuid.UUID, n Notice)

	ListMine(ctx context.Context, rc model.RequestContext, page, limit int) ([]NotificationResponse, int64, error)
	MarkRead(ctx context.Context, rc model.RequestContext, id string) error
	UnreadCount(ctx context.Context, rc model.RequestContext) (int64, error)
}

type notificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	pusher   Pusher
	log      *zap.Logger
}

// NewNotificationService wires the sink. pusher may be nil.
func NewNotificationService(repo repository.NotificationRepository, userRepo repository.UserRepository, pusher Pusher, log *zap.Logger) NotificationService {
	return &notificationService{repo: repo, userRepo: userRepo, pusher: pusher, log: log}
}

func (s *notificationService) NotifyAdmins(ctx context.Context, companyID *uuid.UUID, n Notice) {
	admins, err := s.userRepo.ListAdmins(ctx, companyID)
	if err != nil {
		s.log.Warn("failed to load admins for notification", zap.Error(err), zap.String("title", n.Title))
		metrics.RecordNotificationFailure()
		return
	}
	for _, admin := range admins {
		s.NotifyUser(ctx, admin.ID, n)
	}
}

func (s *notificationService) NotifyUser(ctx context.Context, userID uuid.UUID, n Notice) {
	if n.Type == "" {
		n.Type = model.NotificationInfo
	}
	row := model.Notification{
		UserID:  userID,
		Title:   n.Title,
		Message: n.Message,
		Type:    n.Type,
		Link:    n.Link,
	}
	if err := s.repo.Create(ctx, &row); err != nil {
		s.log.Warn("failed to create notification",
			zap.Error(err), zap.String("user_id", userID.String()), zap.String("title", n.Title))
		metrics.RecordNotificationFailure()
		return
	}

	if s.pusher == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event": "notification",
		"data":  toNotificationResponse(row),
	})
	if err != nil {
		s.log.Warn("failed to encode notification push", zap.Error(err))
		return
	}
	s.pusher.SendToUser(userID, payload)
}

func (s *notificationService) ListMine(ctx context.Context, rc model.RequestContext, page, limit int) ([]NotificationResponse, int64, error) {
	if !rc.IsAuthenticated() {
		return nil, 0, ErrUnauthenticated
	}
	page, limit = normalizePage(page, limit)

	items, total, err := s.repo.ListByUser(ctx, rc.UserID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	res := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		res = append(res, toNotificationResponse(n))
	}
	return res, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, rc model.RequestContext, id string) error {
	if !rc.IsAuthenticated() {
		return ErrUnauthenticated
	}
	nid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid notification id", ErrValidation)
	}

	ok, err := s.repo.MarkRead(ctx, nid, rc.UserID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: notification", ErrNotFound)
	}
	return nil
}

func (s *notificationService) UnreadCount(ctx context.Context, rc model.RequestContext) (int64, error) {
	if !rc.IsAuthenticated() {
		return 0, ErrUnauthenticated
	}
	return s.repo.CountUnread(ctx, rc.UserID)
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID.String(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}
