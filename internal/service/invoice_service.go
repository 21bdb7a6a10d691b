package service

import (
	"context"
	"fmt"
	"time"

	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type InvoiceFilter struct {
	Status string // DRAFT, ISSUED, PAID, CANCELLED or empty for all
	Page   int
	Limit  int
}

type InvoiceResponse struct {
	ID            string  `json:"id"`
	InvoiceNumber string  `json:"invoice_number"`
	OrderID       *string `json:"order_id"`
	TotalAmount   string  `json:"total_amount"`
	Status        string  `json:"status"`
	Notes         string  `json:"notes"`
	CreatedAt     string  `json:"created_at"`
}

type RefundResponse struct {
	ID                string  `json:"id"`
	RefundNumber      string  `json:"refund_number"`
	Amount            string  `json:"amount"`
	Reason            string  `json:"reason"`
	Status            string  `json:"status"`
	ApprovalRequestID *string `json:"approval_request_id"`
	CreatedAt         string  `json:"created_at"`
}

// --- Interface ---

type InvoiceService interface {
	ListInvoices(ctx context.Context, rc model.RequestContext, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	ListRefunds(ctx context.Context, rc model.RequestContext, paymentID string) ([]RefundResponse, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
}

func NewInvoiceService(invoiceRepo repository.InvoiceRepository, paymentRepo repository.PaymentRepository) InvoiceService {
	return &invoiceService{invoiceRepo: invoiceRepo, paymentRepo: paymentRepo}
}

// --- Implementation ---

func (s *invoiceService) ListInvoices(ctx context.Context, rc model.RequestContext, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	if !rc.IsAuthenticated() {
		return nil, 0, ErrUnauthenticated
	}
	page, limit := normalizePage(filter.Page, filter.Limit)

	invoices, total, err := s.invoiceRepo.List(ctx, tenantFilter(rc), filter.Status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	res := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		res = append(res, toInvoiceResponse(inv))
	}
	return res, total, nil
}

func (s *invoiceService) ListRefunds(ctx context.Context, rc model.RequestContext, paymentID string) ([]RefundResponse, error) {
	if !rc.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payment id", ErrValidation)
	}

	p, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: payment not found", ErrNotFound)
		}
		return nil, err
	}
	if !rc.IsSuperAdmin() && !rc.SameCompany(p.CompanyID) {
		return nil, fmt.Errorf("%w: payment not found", ErrNotFound)
	}

	refunds, err := s.paymentRepo.ListRefunds(ctx, id)
	if err != nil {
		return nil, err
	}
	res := make([]RefundResponse, 0, len(refunds))
	for _, r := range refunds {
		item := RefundResponse{
			ID:           r.ID.String(),
			RefundNumber: r.RefundNumber,
			Amount:       r.Amount.StringFixed(2),
			Reason:       r.Reason,
			Status:       r.Status,
			CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		}
		if r.ApprovalRequestID != nil {
			s := r.ApprovalRequestID.String()
			item.ApprovalRequestID = &s
		}
		res = append(res, item)
	}
	return res, nil
}

// --- Helpers ---

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	res := InvoiceResponse{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		TotalAmount:   inv.TotalAmount.StringFixed(2),
		Status:        inv.Status,
		Notes:         inv.Notes,
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.OrderID != nil {
		oid := inv.OrderID.String()
		res.OrderID = &oid
	}
	return res
}
