package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"compugear/internal/metrics"
	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateApprovalRequestDTO struct {
	RequestType string          `json:"request_type" binding:"required" enums:"STOCK_ADJUSTMENT,PRODUCT_CREATE,ORDER_CANCEL,ORDER_REFUND,PAYMENT_REFUND,INVOICE_VOID"`
	Module      string          `json:"module" binding:"required"`
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Reason      string          `json:"reason"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	EntityName  string          `json:"entity_name"`
	RequestData json.RawMessage `json:"request_data" swaggertype:"object"`
	Priority    string          `json:"priority"`
}

type CreateApprovalResult struct {
	RequestID   string `json:"request_id"`
	RequestCode string `json:"request_code"`
}

type ProcessApprovalDTO struct {
	RequestID     string `json:"request_id" binding:"required"`
	Action        string `json:"action" binding:"required"`
	ApprovalNotes string `json:"approval_notes"`
}

// ProcessResult is returned by a successful Process call. Dispatch is for the caller's logs
// and tests only; a failed side effect does not fail the approval.
type ProcessResult struct {
	Request  ApprovalRequestResponse `json:"request"`
	Message  string                  `json:"message"`
	Dispatch DispatchOutcome         `json:"-"`
}

type ApprovalFilter struct {
	Module       string
	Status       string
	RequestTypes []string
	Page         int
	Limit        int
}

type ApprovalRequestResponse struct {
	ID            string          `json:"id"`
	RequestCode   string          `json:"request_code"`
	CompanyID     *string         `json:"company_id"`
	RequestType   string          `json:"request_type"`
	Module        string          `json:"module"`
	Priority      string          `json:"priority"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Reason        string          `json:"reason"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	EntityName    string          `json:"entity_name"`
	RequestData   json.RawMessage `json:"request_data" swaggertype:"object"`
	Status        string          `json:"status"`
	RequestedBy   string          `json:"requested_by"`
	RequesterName string          `json:"requester_name"`
	RequestedAt   string          `json:"requested_at"`
	ApprovedBy    *string         `json:"approved_by"`
	ApproverName  string          `json:"approver_name"`
	ApprovedAt    *string         `json:"approved_at"`
	ApprovalNotes string          `json:"approval_notes"`
	IsRead        bool            `json:"is_read"`
}

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// --- Interface ---

type ApprovalService interface {
	Create(ctx context.Context, rc model.RequestContext, req CreateApprovalRequestDTO) (CreateApprovalResult, error)
	Process(ctx context.Context, rc model.RequestContext, req ProcessApprovalDTO) (ProcessResult, error)
	Cancel(ctx context.Context, rc model.RequestContext, id string) (ApprovalRequestResponse, error)
	List(ctx context.Context, rc model.RequestContext, filter ApprovalFilter) ([]ApprovalRequestResponse, int64, error)
	PendingCount(ctx context.Context, rc model.RequestContext) (int64, error)
	GetDetails(ctx context.Context, rc model.RequestContext, id string) (ApprovalRequestResponse, error)
	MyRequests(ctx context.Context, rc model.RequestContext, page, limit int) ([]ApprovalRequestResponse, int64, error)
	View(ctx context.Context, rc model.RequestContext, id string) (ApprovalRequestResponse, error)
}

type approvalService struct {
	txManager  repository.TransactionManager
	repo       repository.ApprovalRepository
	dispatcher *Dispatcher
	access     ModuleAccessService
	notifier   NotificationService
	audit      AuditService
	log        *zap.Logger
	now        func() time.Time
}

func NewApprovalService(
	txManager repository.TransactionManager,
	repo repository.ApprovalRepository,
	dispatcher *Dispatcher,
	access ModuleAccessService,
	notifier NotificationService,
	audit AuditService,
	log *zap.Logger,
) ApprovalService {
	return &approvalService{
		txManager:  txManager,
		repo:       repo,
		dispatcher: dispatcher,
		access:     access,
		notifier:   notifier,
		audit:      audit,
		log:        log,
		now:        time.Now,
	}
}

// --- Implementation ---

func (s *approvalService) Create(ctx context.Context, rc model.RequestContext, req CreateApprovalRequestDTO) (CreateApprovalResult, error) {
	if !rc.IsAuthenticated() {
		return CreateApprovalResult{}, ErrUnauthenticated
	}

	requestType := model.CanonicalRequestType(req.RequestType)
	module := strings.ToUpper(strings.TrimSpace(req.Module))
	title := strings.TrimSpace(req.Title)
	if requestType == "" || module == "" || title == "" {
		return CreateApprovalResult{}, fmt.Errorf("%w: request_type, module and title are required", ErrValidation)
	}

	priority := strings.ToUpper(strings.TrimSpace(req.Priority))
	switch priority {
	case "":
		priority = model.PriorityNormal
	case model.PriorityLow, model.PriorityNormal, model.PriorityHigh, model.PriorityUrgent:
	default:
		return CreateApprovalResult{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, req.Priority)
	}

	data, err := normalizeRequestData(req.RequestData)
	if err != nil {
		return CreateApprovalResult{}, err
	}
	if _, err := DecodePayload(requestType, data); err != nil {
		return CreateApprovalResult{}, err
	}

	if !rc.IsAdmin() && isManagedModule(module) {
		allowed, err := s.access.CheckAccess(ctx, rc, module)
		if err != nil {
			return CreateApprovalResult{}, fmt.Errorf("failed to check module access: %w", err)
		}
		if !allowed {
			return CreateApprovalResult{}, fmt.Errorf("%w: no access to module %s", ErrForbidden, module)
		}
	}

	now := s.now()
	approval := model.ApprovalRequest{
		CompanyID:   rc.CompanyID,
		RequestType: requestType,
		Module:      module,
		Priority:    priority,
		Title:       title,
		Description: req.Description,
		Reason:      req.Reason,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		EntityName:  req.EntityName,
		RequestData: data,
		Status:      model.ApprovalPending,
		RequestedBy: rc.UserID,
		RequestedAt: now,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		code, codeErr := s.generateRequestCode(txCtx, now)
		if codeErr != nil {
			return codeErr
		}
		approval.RequestCode = code

		if createErr := s.repo.Create(txCtx, &approval); createErr != nil {
			return fmt.Errorf("failed to create approval request: %w", createErr)
		}

		userID := rc.UserID
		return s.audit.Record(txCtx, AuditEntry{
			CompanyID:  rc.CompanyID,
			UserID:     &userID,
			Action:     model.ActionCreateApprovalRequest,
			EntityID:   approval.ID.String(),
			EntityName: approval.RequestCode,
			Details: map[string]interface{}{
				"request_type": approval.RequestType,
				"module":       approval.Module,
				"entity_id":    approval.EntityID,
			},
		})
	})
	if err != nil {
		return CreateApprovalResult{}, err
	}

	metrics.RecordApproval(approval.RequestType, "create")

	s.notifier.NotifyAdmins(ctx, approval.CompanyID, Notice{
		Title:   "New approval request",
		Message: fmt.Sprintf("%s: %s", approval.RequestCode, approval.Title),
		Type:    model.NotificationInfo,
		Link:    "/approval-requests/view/" + approval.ID.String(),
	})

	return CreateApprovalResult{RequestID: approval.ID.String(), RequestCode: approval.RequestCode}, nil
}

func (s *approvalService) Process(ctx context.Context, rc model.RequestContext, req ProcessApprovalDTO) (ProcessResult, error) {
	if !rc.IsAuthenticated() {
		return ProcessResult{}, ErrUnauthenticated
	}
	if !rc.IsAdmin() {
		return ProcessResult{}, fmt.Errorf("%w: only administrators can process requests", ErrForbidden)
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action != ActionApprove && action != ActionReject {
		return ProcessResult{}, fmt.Errorf("%w: action must be approve or reject", ErrValidation)
	}
	id, err := uuid.Parse(req.RequestID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	status := model.ApprovalRejected
	auditAction := model.ActionRejectRequest
	if action == ActionApprove {
		status = model.ApprovalApproved
		auditAction = model.ActionApproveRequest
	}

	var approval *model.ApprovalRequest
	var outcome DispatchOutcome
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, findErr := s.repo.FindByID(txCtx, id)
		if findErr != nil {
			if repository.IsNotFound(findErr) {
				return fmt.Errorf("%w: approval request", ErrNotFound)
			}
			return fmt.Errorf("failed to load approval request: %w", findErr)
		}
		if !canSee(rc, found) {
			return fmt.Errorf("%w: approval request", ErrNotFound)
		}
		if found.Status != model.ApprovalPending {
			return fmt.Errorf("%w: request is already %s", ErrInvalidState, found.Status)
		}

		now := s.now()
		approverID := rc.UserID
		moved, updErr := s.repo.TransitionFromPending(txCtx, id, repository.ApprovalTransition{
			Status:        status,
			ApprovedBy:    &approverID,
			ApprovedAt:    &now,
			ApprovalNotes: req.ApprovalNotes,
		})
		if updErr != nil {
			return fmt.Errorf("failed to update approval request: %w", updErr)
		}
		if !moved {
			return fmt.Errorf("%w: request was processed concurrently", ErrInvalidState)
		}
		found.Status = status
		found.ApprovedBy = &approverID
		found.ApprovedAt = &now
		found.ApprovalNotes = req.ApprovalNotes
		approval = found

		if status == model.ApprovalApproved {
			var dispatchErr error
			outcome, dispatchErr = s.dispatchIsolated(txCtx, found, approverID)
			if dispatchErr != nil {
				return dispatchErr
			}
		}

		return s.audit.Record(txCtx, AuditEntry{
			CompanyID:  found.CompanyID,
			UserID:     &approverID,
			Action:     auditAction,
			EntityID:   found.ID.String(),
			EntityName: found.RequestCode,
			Details: map[string]interface{}{
				"request_type":       found.RequestType,
				"entity_id":          found.EntityID,
				"notes":              req.ApprovalNotes,
				"dispatch_attempted": outcome.Attempted,
				"dispatch_failed":    outcome.Failed(),
			},
		})
	})
	if err != nil {
		return ProcessResult{}, err
	}

	metrics.RecordApproval(approval.RequestType, action)
	if outcome.Failed() {
		metrics.RecordDispatchFailure(approval.RequestType)
		s.log.Error("approved request side effect failed",
			zap.String("request_code", approval.RequestCode),
			zap.String("request_type", approval.RequestType),
			zap.String("entity_id", approval.EntityID),
			zap.Error(outcome.Err))
	}

	message := "Request rejected"
	notice := Notice{
		Title:   "Request rejected",
		Message: fmt.Sprintf("Your request %s was rejected.", approval.RequestCode),
		Type:    model.NotificationWarning,
		Link:    "/approval-requests/view/" + approval.ID.String(),
	}
	if status == model.ApprovalApproved {
		message = "Request approved successfully"
		notice.Title = "Request approved"
		notice.Message = fmt.Sprintf("Your request %s was approved.", approval.RequestCode)
		notice.Type = model.NotificationSuccess
	}
	if req.ApprovalNotes != "" {
		notice.Message += " Notes: " + req.ApprovalNotes
	}
	s.notifier.NotifyUser(ctx, approval.RequestedBy, notice)

	resp := toApprovalResponse(*approval)
	if reloaded, loadErr := s.repo.FindByIDWithRelations(ctx, approval.ID); loadErr == nil {
		resp = toApprovalResponse(*reloaded)
	}
	return ProcessResult{Request: resp, Message: message, Dispatch: outcome}, nil
}

// dispatchIsolated runs the side effect in a savepoint so its failure only undoes its own
// writes. The returned error is non-nil only when the savepoint itself could not be handled.
func (s *approvalService) dispatchIsolated(ctx context.Context, req *model.ApprovalRequest, approverID uuid.UUID) (DispatchOutcome, error) {
	var outcome DispatchOutcome
	err := s.txManager.RunInTx(ctx, func(spCtx context.Context) error {
		outcome = s.dispatcher.Dispatch(spCtx, req, approverID)
		return outcome.Err
	})
	if err != nil && (outcome.Err == nil || !errors.Is(err, outcome.Err)) {
		return outcome, fmt.Errorf("failed to isolate approval side effect: %w", err)
	}
	return outcome, nil
}

func (s *approvalService) Cancel(ctx context.Context, rc model.RequestContext, id string) (ApprovalRequestResponse, error) {
	if !rc.IsAuthenticated() {
		return ApprovalRequestResponse{}, ErrUnauthenticated
	}
	reqID, err := uuid.Parse(id)
	if err != nil {
		return ApprovalRequestResponse{}, fmt.Errorf("%w: invalid request id", ErrValidation)
	}

	var approval *model.ApprovalRequest
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, findErr := s.repo.FindByID(txCtx, reqID)
		if findErr != nil {
			if repository.IsNotFound(findErr) {
				return fmt.Errorf("%w: approval request", ErrNotFound)
			}
			return fmt.Errorf("failed to load approval request: %w", findErr)
		}
		if found.RequestedBy != rc.UserID {
			return fmt.Errorf("%w: only the requester can cancel this request", ErrForbidden)
		}
		if found.Status != model.ApprovalPending {
			return fmt.Errorf("%w: request is already %s", ErrInvalidState, found.Status)
		}

		moved, updErr := s.repo.TransitionFromPending(txCtx, reqID, repository.ApprovalTransition{Status: model.ApprovalCancelled})
		if updErr != nil {
			return fmt.Errorf("failed to cancel approval request: %w", updErr)
		}
		if !moved {
			return fmt.Errorf("%w: request was processed concurrently", ErrInvalidState)
		}
		found.Status = model.ApprovalCancelled
		approval = found

		userID := rc.UserID
		return s.audit.Record(txCtx, AuditEntry{
			CompanyID:  found.CompanyID,
			UserID:     &userID,
			Action:     model.ActionCancelRequest,
			EntityID:   found.ID.String(),
			EntityName: found.RequestCode,
		})
	})
	if err != nil {
		return ApprovalRequestResponse{}, err
	}

	metrics.RecordApproval(approval.RequestType, "cancel")
	return toApprovalResponse(*approval), nil
}

func (s *approvalService) List(ctx context.Context, rc model.RequestContext, filter ApprovalFilter) ([]ApprovalRequestResponse, int64, error) {
	if err := requireAdmin(rc); err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(filter.Page, filter.Limit)

	types := make([]string, 0, len(filter.RequestTypes))
	for _, t := range filter.RequestTypes {
		if t = model.CanonicalRequestType(t); t != "" {
			types = append(types, t)
		}
	}

	approvals, total, err := s.repo.List(ctx, repository.ApprovalListFilter{
		CompanyID:    tenantFilter(rc),
		Module:       strings.ToUpper(strings.TrimSpace(filter.Module)),
		Status:       strings.ToUpper(strings.TrimSpace(filter.Status)),
		RequestTypes: types,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch approval requests: %w", err)
	}
	return toApprovalResponses(approvals), total, nil
}

func (s *approvalService) PendingCount(ctx context.Context, rc model.RequestContext) (int64, error) {
	if err := requireAdmin(rc); err != nil {
		return 0, err
	}
	return s.repo.CountPending(ctx, tenantFilter(rc))
}

func (s *approvalService) GetDetails(ctx context.Context, rc model.RequestContext, id string) (ApprovalRequestResponse, error) {
	if err := requireAdmin(rc); err != nil {
		return ApprovalRequestResponse{}, err
	}
	approval, err := s.load(ctx, id)
	if err != nil {
		return ApprovalRequestResponse{}, err
	}
	if !canSee(rc, approval) {
		return ApprovalRequestResponse{}, fmt.Errorf("%w: approval request", ErrNotFound)
	}

	if !approval.IsRead {
		if err := s.repo.MarkRead(ctx, approval.ID); err != nil {
			return ApprovalRequestResponse{}, fmt.Errorf("failed to mark request read: %w", err)
		}
		approval.IsRead = true
	}
	return toApprovalResponse(*approval), nil
}

func (s *approvalService) MyRequests(ctx context.Context, rc model.RequestContext, page, limit int) ([]ApprovalRequestResponse, int64, error) {
	if !rc.IsAuthenticated() {
		return nil, 0, ErrUnauthenticated
	}
	page, limit = normalizePage(page, limit)

	userID := rc.UserID
	approvals, total, err := s.repo.List(ctx, repository.ApprovalListFilter{
		RequestedBy: &userID,
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch approval requests: %w", err)
	}
	return toApprovalResponses(approvals), total, nil
}

func (s *approvalService) View(ctx context.Context, rc model.RequestContext, id string) (ApprovalRequestResponse, error) {
	if !rc.IsAuthenticated() {
		return ApprovalRequestResponse{}, ErrUnauthenticated
	}
	approval, err := s.load(ctx, id)
	if err != nil {
		return ApprovalRequestResponse{}, err
	}

	if approval.RequestedBy == rc.UserID {
		return toApprovalResponse(*approval), nil
	}
	if !rc.IsAdmin() {
		return ApprovalRequestResponse{}, fmt.Errorf("%w: not your request", ErrForbidden)
	}
	if !canSee(rc, approval) {
		return ApprovalRequestResponse{}, fmt.Errorf("%w: approval request", ErrNotFound)
	}
	return toApprovalResponse(*approval), nil
}

// --- Helpers ---

func (s *approvalService) load(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}
	approval, err := s.repo.FindByIDWithRelations(ctx, reqID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: approval request", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	return approval, nil
}

// generateRequestCode returns REQ-YYYYMMDD-XXXXXX with six uppercase hex characters.
func (s *approvalService) generateRequestCode(ctx context.Context, now time.Time) (string, error) {
	prefix := "REQ-" + now.Format("20060102") + "-"
	for i := 0; i < 5; i++ {
		code := prefix + randomHex(3)
		exists, err := s.repo.ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check request code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique request code")
}

func requireAdmin(rc model.RequestContext) error {
	if !rc.IsAuthenticated() {
		return ErrUnauthenticated
	}
	if !rc.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

// canSee limits company admins to their own tenant.
func canSee(rc model.RequestContext, req *model.ApprovalRequest) bool {
	if rc.IsSuperAdmin() {
		return true
	}
	return rc.SameCompany(req.CompanyID)
}

func normalizeRequestData(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "{}", nil
	}
	// Older clients send the payload as a JSON-encoded string.
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return "", fmt.Errorf("%w: request_data must be JSON", ErrValidation)
		}
		trimmed = strings.TrimSpace(inner)
		if trimmed == "" {
			return "{}", nil
		}
	}
	if !json.Valid([]byte(trimmed)) {
		return "", fmt.Errorf("%w: request_data must be JSON", ErrValidation)
	}
	return trimmed, nil
}

func toApprovalResponses(approvals []model.ApprovalRequest) []ApprovalRequestResponse {
	result := make([]ApprovalRequestResponse, 0, len(approvals))
	for _, a := range approvals {
		result = append(result, toApprovalResponse(a))
	}
	return result
}

func toApprovalResponse(a model.ApprovalRequest) ApprovalRequestResponse {
	resp := ApprovalRequestResponse{
		ID:            a.ID.String(),
		RequestCode:   a.RequestCode,
		RequestType:   a.RequestType,
		Module:        a.Module,
		Priority:      a.Priority,
		Title:         a.Title,
		Description:   a.Description,
		Reason:        a.Reason,
		EntityType:    a.EntityType,
		EntityID:      a.EntityID,
		EntityName:    a.EntityName,
		Status:        a.Status,
		RequestedBy:   a.RequestedBy.String(),
		RequestedAt:   a.RequestedAt.Format(time.RFC3339),
		ApprovalNotes: a.ApprovalNotes,
		IsRead:        a.IsRead,
	}

	if json.Valid([]byte(a.RequestData)) {
		resp.RequestData = json.RawMessage(a.RequestData)
	}
	if a.CompanyID != nil {
		s := a.CompanyID.String()
		resp.CompanyID = &s
	}
	if a.Requester != nil {
		resp.RequesterName = a.Requester.FullName()
	}
	if a.ApprovedBy != nil {
		s := a.ApprovedBy.String()
		resp.ApprovedBy = &s
	}
	if a.Approver != nil {
		resp.ApproverName = a.Approver.FullName()
	}
	if a.ApprovedAt != nil {
		s := a.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &s
	}

	return resp
}
