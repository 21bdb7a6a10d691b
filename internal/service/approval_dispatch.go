package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Typed request payloads ---

type StockAdjustmentPayload struct {
	AdjustmentType string `json:"adjustment_type"`
	Quantity       int    `json:"quantity"`
}

type RefundPayload struct {
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
	Reason       string           `json:"reason,omitempty"`
}

type ProductCreatePayload struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
}

type NotesPayload struct {
	Notes string `json:"notes,omitempty"`
}

// DecodePayload parses raw request data into the payload type for requestType and validates
// it. Unknown request types return (nil, nil) and keep their raw JSON untouched.
func DecodePayload(requestType, raw string) (interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	switch requestType {
	case model.ApprovalReqTypeStockAdjustment:
		var p StockAdjustmentPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("%w: malformed stock adjustment data", ErrValidation)
		}
		if p.AdjustmentType != model.AdjustmentAdd && p.AdjustmentType != model.AdjustmentDeduct {
			return nil, fmt.Errorf("%w: adjustment_type must be Add or Deduct", ErrValidation)
		}
		if p.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		return p, nil

	case model.ApprovalReqTypeOrderRefund, model.ApprovalReqTypePaymentRefund:
		var p RefundPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("%w: malformed refund data", ErrValidation)
		}
		if p.RefundAmount != nil && !p.RefundAmount.IsPositive() {
			return nil, fmt.Errorf("%w: refund_amount must be positive", ErrValidation)
		}
		return p, nil

	case model.ApprovalReqTypeProductCreate:
		var p ProductCreatePayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("%w: malformed product data", ErrValidation)
		}
		if strings.TrimSpace(p.SKU) == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("%w: sku and name are required", ErrValidation)
		}
		if p.Price.IsNegative() || p.InitialStock < 0 {
			return nil, fmt.Errorf("%w: price and initial_stock must not be negative", ErrValidation)
		}
		return p, nil

	case model.ApprovalReqTypeOrderCancel, model.ApprovalReqTypeInvoiceVoid:
		var p NotesPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("%w: malformed request data", ErrValidation)
		}
		return p, nil
	}

	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("%w: request_data must be JSON", ErrValidation)
	}
	return nil, nil
}

// DispatchOutcome reports what happened when an approved request's side effect was replayed.
type DispatchOutcome struct {
	Attempted bool
	Err       error
}

func (o DispatchOutcome) Failed() bool { return o.Err != nil }

type dispatchHandler func(ctx context.Context, req *model.ApprovalRequest, payload interface{}, approverID uuid.UUID) error

// Dispatcher applies the mutation an approved request stands for.
type Dispatcher struct {
	products repository.ProductRepository
	invTx    repository.InventoryTxRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	invoices repository.InvoiceRepository
	now      func() time.Time

	handlers map[string]dispatchHandler
}

func NewDispatcher(
	products repository.ProductRepository,
	invTx repository.InventoryTxRepository,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	invoices repository.InvoiceRepository,
) *Dispatcher {
	d := &Dispatcher{
		products: products,
		invTx:    invTx,
		orders:   orders,
		payments: payments,
		invoices: invoices,
		now:      time.Now,
	}
	d.handlers = map[string]dispatchHandler{
		model.ApprovalReqTypeStockAdjustment: d.applyStockAdjustment,
		model.ApprovalReqTypeProductCreate:   d.applyProductCreate,
		model.ApprovalReqTypeOrderCancel:     d.applyOrderCancel,
		model.ApprovalReqTypeOrderRefund:     d.applyRefund,
		model.ApprovalReqTypePaymentRefund:   d.applyRefund,
		model.ApprovalReqTypeInvoiceVoid:     d.applyInvoiceVoid,
	}
	return d
}

// Dispatch runs the handler for req.RequestType. Unknown types are not attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, req *model.ApprovalRequest, approverID uuid.UUID) DispatchOutcome {
	handler, ok := d.handlers[req.RequestType]
	if !ok {
		return DispatchOutcome{}
	}

	payload, err := DecodePayload(req.RequestType, req.RequestData)
	if err != nil {
		return DispatchOutcome{Attempted: true, Err: err}
	}
	return DispatchOutcome{Attempted: true, Err: handler(ctx, req, payload, approverID)}
}

func (d *Dispatcher) applyStockAdjustment(ctx context.Context, req *model.ApprovalRequest, payload interface{}, approverID uuid.UUID) error {
	p := payload.(StockAdjustmentPayload)

	productID, err := parseEntityID(req)
	if err != nil {
		return err
	}
	product, err := d.products.FindByIDForUpdate(ctx, productID)
	if err != nil {
		return fmt.Errorf("product %s not found: %w", req.EntityID, err)
	}
	if err := sameTenant(req, product.CompanyID); err != nil {
		return err
	}

	previous := product.StockQuantity
	next := previous + p.Quantity
	if p.AdjustmentType == model.AdjustmentDeduct {
		next = previous - p.Quantity
		if next < 0 {
			next = 0
		}
	}

	if err := d.products.UpdateStock(ctx, product.ID, next); err != nil {
		return fmt.Errorf("failed to update stock for product %s: %w", product.Name, err)
	}

	reqID := req.ID
	return d.invTx.Create(ctx, &model.InventoryTransaction{
		ProductID:         product.ID,
		TransactionType:   model.TxTypeAdjustment,
		Quantity:          p.Quantity,
		PreviousStock:     previous,
		NewStock:          next,
		ApprovalRequestID: &reqID,
		Notes:             fmt.Sprintf("%s %d via %s", p.AdjustmentType, p.Quantity, req.RequestCode),
		CreatedBy:         &approverID,
	})
}

func (d *Dispatcher) applyProductCreate(ctx context.Context, req *model.ApprovalRequest, payload interface{}, approverID uuid.UUID) error {
	p := payload.(ProductCreatePayload)

	product := model.Product{
		CompanyID:     req.CompanyID,
		SKU:           strings.TrimSpace(p.SKU),
		Name:          strings.TrimSpace(p.Name),
		Price:         p.Price,
		StockQuantity: p.InitialStock,
	}
	if err := d.products.Create(ctx, &product); err != nil {
		return fmt.Errorf("failed to create product %s: %w", product.SKU, err)
	}
	if p.InitialStock == 0 {
		return nil
	}

	reqID := req.ID
	return d.invTx.Create(ctx, &model.InventoryTransaction{
		ProductID:         product.ID,
		TransactionType:   model.TxTypeIn,
		Quantity:          p.InitialStock,
		PreviousStock:     0,
		NewStock:          p.InitialStock,
		ApprovalRequestID: &reqID,
		Notes:             "Initial stock via " + req.RequestCode,
		CreatedBy:         &approverID,
	})
}

func (d *Dispatcher) applyOrderCancel(ctx context.Context, req *model.ApprovalRequest, payload interface{}, _ uuid.UUID) error {
	p := payload.(NotesPayload)

	orderID, err := parseEntityID(req)
	if err != nil {
		return err
	}
	order, err := d.orders.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order %s not found: %w", req.EntityID, err)
	}
	if err := sameTenant(req, order.CompanyID); err != nil {
		return err
	}

	note := "Cancelled via approval request " + req.RequestCode
	if p.Notes != "" {
		note += ": " + p.Notes
	}
	return d.orders.MarkCancelled(ctx, order.ID, d.now(), appendNote(order.Notes, note))
}

func (d *Dispatcher) applyRefund(ctx context.Context, req *model.ApprovalRequest, payload interface{}, approverID uuid.UUID) error {
	p := payload.(RefundPayload)

	paymentID, err := parseEntityID(req)
	if err != nil {
		return err
	}
	payment, err := d.payments.FindByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("payment %s not found: %w", req.EntityID, err)
	}
	if err := sameTenant(req, payment.CompanyID); err != nil {
		return err
	}

	amount := payment.Amount
	if p.RefundAmount != nil {
		amount = *p.RefundAmount
	}
	if amount.GreaterThan(payment.Amount) {
		return fmt.Errorf("refund %s exceeds payment amount %s", amount.StringFixed(2), payment.Amount.StringFixed(2))
	}

	reason := p.Reason
	if reason == "" {
		reason = req.Reason
	}
	now := d.now()
	reqID := req.ID
	return d.payments.CreateRefund(ctx, &model.Refund{
		RefundNumber:      "RF-" + now.Format("20060102") + "-" + randomHex(3),
		PaymentID:         payment.ID,
		Amount:            amount,
		Reason:            reason,
		Status:            model.RefundStatusCompleted,
		ApprovalRequestID: &reqID,
		ProcessedBy:       &approverID,
		ProcessedAt:       &now,
	})
}

func (d *Dispatcher) applyInvoiceVoid(ctx context.Context, req *model.ApprovalRequest, payload interface{}, _ uuid.UUID) error {
	p := payload.(NotesPayload)

	invoiceID, err := parseEntityID(req)
	if err != nil {
		return err
	}
	invoice, err := d.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("invoice %s not found: %w", req.EntityID, err)
	}
	if err := sameTenant(req, invoice.CompanyID); err != nil {
		return err
	}

	note := "Voided via approval request " + req.RequestCode
	if p.Notes != "" {
		note += ": " + p.Notes
	}
	return d.invoices.Void(ctx, invoice.ID, appendNote(invoice.Notes, note))
}

// --- Helpers ---

func parseEntityID(req *model.ApprovalRequest) (uuid.UUID, error) {
	id, err := uuid.Parse(req.EntityID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid entity id %q: %w", req.EntityID, err)
	}
	return id, nil
}

// sameTenant rejects a target entity owned by a different company than the request.
func sameTenant(req *model.ApprovalRequest, entityCompany *uuid.UUID) error {
	if req.CompanyID == nil || entityCompany == nil {
		return nil
	}
	if *req.CompanyID != *entityCompany {
		return fmt.Errorf("entity %s belongs to another company", req.EntityID)
	}
	return nil
}

func appendNote(existing, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + "\n" + note
}

// randomHex returns 2n uppercase hex characters.
func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:2*n])
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
