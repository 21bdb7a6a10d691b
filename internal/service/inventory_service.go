package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type CreateProductRequest struct {
	SKU          string          `json:"sku" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock" binding:"min=0"`
}

type ProductResponse struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	StockQuantity int             `json:"stock_quantity"`
	Price         decimal.Decimal `json:"price"`
	CreatedAt     string          `json:"created_at"`
}

type InventoryTransactionResponse struct {
	ID                string  `json:"id"`
	TransactionType   string  `json:"transaction_type"`
	Quantity          int     `json:"quantity"`
	PreviousStock     int     `json:"previous_stock"`
	NewStock          int     `json:"new_stock"`
	ApprovalRequestID *string `json:"approval_request_id"`
	Notes             string  `json:"notes"`
	CreatedAt         string  `json:"created_at"`
}

type InventoryService interface {
	GetProducts(ctx context.Context, rc model.RequestContext, page, limit int, search string) ([]ProductResponse, int64, error)
	CreateProduct(ctx context.Context, rc model.RequestContext, req CreateProductRequest) (ProductResponse, error)
	GetProductHistory(ctx context.Context, rc model.RequestContext, id string) ([]InventoryTransactionResponse, error)
}

type inventoryService struct {
	productRepo repository.ProductRepository
	invTxRepo   repository.InventoryTxRepository
	audit       AuditService
	txManager   repository.TransactionManager
}

func NewInventoryService(
	productRepo repository.ProductRepository,
	invTxRepo repository.InventoryTxRepository,
	audit AuditService,
	txManager repository.TransactionManager,
) InventoryService {
	return &inventoryService{
		productRepo: productRepo,
		invTxRepo:   invTxRepo,
		audit:       audit,
		txManager:   txManager,
	}
}

func toProductResponse(p model.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID.String(),
		SKU:           p.SKU,
		Name:          p.Name,
		StockQuantity: p.StockQuantity,
		Price:         p.Price,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

func (s *inventoryService) GetProducts(ctx context.Context, rc model.RequestContext, page, limit int, search string) ([]ProductResponse, int64, error) {
	if !rc.IsAuthenticated() {
		return nil, 0, ErrUnauthenticated
	}
	page, limit = normalizePage(page, limit)

	products, total, err := s.productRepo.List(ctx, tenantFilter(rc), page, limit, strings.TrimSpace(search))
	if err != nil {
		return nil, 0, err
	}

	res := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		res = append(res, toProductResponse(p))
	}
	return res, total, nil
}

func (s *inventoryService) CreateProduct(ctx context.Context, rc model.RequestContext, req CreateProductRequest) (ProductResponse, error) {
	if err := requireAdmin(rc); err != nil {
		return ProductResponse{}, err
	}
	sku := strings.TrimSpace(req.SKU)
	name := strings.TrimSpace(req.Name)
	if sku == "" || name == "" {
		return ProductResponse{}, fmt.Errorf("%w: sku and name are required", ErrValidation)
	}
	if req.Price.IsNegative() {
		return ProductResponse{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if req.InitialStock < 0 {
		return ProductResponse{}, fmt.Errorf("%w: initial stock must not be negative", ErrValidation)
	}

	product := model.Product{
		CompanyID:     rc.CompanyID,
		SKU:           sku,
		Name:          name,
		Price:         req.Price,
		StockQuantity: req.InitialStock,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.productRepo.FindBySKU(txCtx, rc.CompanyID, sku); err == nil {
			return fmt.Errorf("%w: sku %s already exists", ErrValidation, sku)
		} else if !repository.IsNotFound(err) {
			return err
		}

		if err := s.productRepo.Create(txCtx, &product); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%w: sku %s already exists", ErrValidation, sku)
			}
			return fmt.Errorf("failed to create product: %w", err)
		}

		if req.InitialStock > 0 {
			if err := s.invTxRepo.Create(txCtx, &model.InventoryTransaction{
				ProductID:       product.ID,
				TransactionType: model.TxTypeIn,
				Quantity:        req.InitialStock,
				PreviousStock:   0,
				NewStock:        req.InitialStock,
				Notes:           "Initial stock",
				CreatedBy:       &rc.UserID,
			}); err != nil {
				return fmt.Errorf("failed to record initial stock: %w", err)
			}
		}

		return s.audit.Record(txCtx, AuditEntry{
			CompanyID:  rc.CompanyID,
			UserID:     &rc.UserID,
			Action:     model.ActionCreateProduct,
			EntityID:   product.ID.String(),
			EntityName: "products",
			Details:    map[string]interface{}{"sku": sku, "name": name, "initial_stock": req.InitialStock},
		})
	})
	if err != nil {
		return ProductResponse{}, err
	}

	return toProductResponse(product), nil
}

func (s *inventoryService) GetProductHistory(ctx context.Context, rc model.RequestContext, id string) ([]InventoryTransactionResponse, error) {
	if !rc.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid product id", ErrValidation)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: product not found", ErrNotFound)
		}
		return nil, err
	}
	if !rc.IsSuperAdmin() && !rc.SameCompany(product.CompanyID) {
		return nil, fmt.Errorf("%w: product not found", ErrNotFound)
	}

	txs, err := s.invTxRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	res := make([]InventoryTransactionResponse, 0, len(txs))
	for _, t := range txs {
		item := InventoryTransactionResponse{
			ID:              t.ID.String(),
			TransactionType: t.TransactionType,
			Quantity:        t.Quantity,
			PreviousStock:   t.PreviousStock,
			NewStock:        t.NewStock,
			Notes:           t.Notes,
			CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		}
		if t.ApprovalRequestID != nil {
			rid := t.ApprovalRequestID.String()
			item.ApprovalRequestID = &rid
		}
		res = append(res, item)
	}
	return res, nil
}
