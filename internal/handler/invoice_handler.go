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

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	access         middleware.ModuleChecker
}

func NewInvoiceHandler(invoiceService service.InvoiceService, access middleware.ModuleChecker) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, access: access}
}

// RegisterRoutes expects a group that already runs RequireAuth.
func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	billing := router.Group("", middleware.RequireModule(h.access, model.ModuleBilling))
	{
		billing.GET("/invoices", h.ListInvoices)
		billing.GET("/payments/:id/refunds", h.ListRefunds)
	}
}

// ListInvoices lists the company's invoices
// @Summary      List invoices
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "DRAFT, ISSUED, PAID or CANCELLED"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.InvoiceFilter{Status: c.Query("status"), Page: p.Page, Limit: p.Limit}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), middleware.GetRequestContext(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, invoices, total, p.Page, p.Limit))
}

// ListRefunds lists refunds issued against a payment
// @Summary      List refunds of a payment
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  response.Response{data=[]service.RefundResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/payments/{id}/refunds [get]
func (h *InvoiceHandler) ListRefunds(c *gin.Context) {
	refunds, err := h.invoiceService.ListRefunds(c.Request.Context(), middleware.GetRequestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, refunds))
}
