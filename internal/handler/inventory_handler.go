package handler

import (
	"net/http"

	"compugear/internal/middleware"
	"compugear/internal/model"
	"compugear/internal/service"
	"compugear/pkg/pagination"
	"compugear/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	inventoryService service.InventoryService
	access           middleware.ModuleChecker
}

func NewInventoryHandler(inventoryService service.InventoryService, access middleware.ModuleChecker) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService, access: access}
}

// RegisterRoutes expects a group that already runs RequireAuth.
func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/products", middleware.RequireModule(h.access, model.ModuleInventory))
	{
		products.GET("", h.GetProducts)
		products.GET("/:id/history", h.GetProductHistory)
		products.POST("", middleware.RequireAdmin(), h.CreateProduct)
	}
}

// GetProducts handles retrieving paginated inventory statuses
// @Summary      Get products
// @Description  Retrieves a paginated list of the company's products with current stock
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by name or SKU"
// @Success      200    {object}  response.Response{data=response.Page}
// @Failure      403    {object}  response.Response
// @Router       /api/products [get]
func (h *InventoryHandler) GetProducts(c *gin.Context) {
	p := pagination.Parse(c)
	products, total, err := h.inventoryService.GetProducts(c.Request.Context(), middleware.GetRequestContext(c), p.Page, p.Limit, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, products, total, p.Page, p.Limit))
}

// CreateProduct adds a product directly (admins only; staff go through approval requests)
// @Summary      Create product
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProductRequest  true  "Product"
// @Success      201      {object}  response.Response{data=service.ProductResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/products [post]
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	product, err := h.inventoryService.CreateProduct(c.Request.Context(), middleware.GetRequestContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// GetProductHistory lists a product's stock movements
// @Summary      Product stock history
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response{data=[]service.InventoryTransactionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id}/history [get]
func (h *InventoryHandler) GetProductHistory(c *gin.Context) {
	history, err := h.inventoryService.GetProductHistory(c.Request.Context(), middleware.GetRequestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}
