package handler

import (
	"net/http"

	"compugear/internal/middleware"
	"compugear/internal/service"
	"compugear/pkg/pagination"
	"compugear/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
}

func NewApprovalHandler(approvalService service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

// RegisterRoutes expects a group that already runs RequireAuth.
func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/approval-requests")
	{
		approvals.POST("", h.CreateRequest)
		approvals.GET("/my-requests", h.MyRequests)
		approvals.GET("/view/:id", h.ViewRequest)
		approvals.POST("/:id/cancel", h.CancelRequest)

		approvals.GET("", middleware.RequireAdmin(), h.ListRequests)
		approvals.GET("/pending-count", middleware.RequireAdmin(), h.PendingCount)
		approvals.GET("/details/:id", middleware.RequireAdmin(), h.GetDetails)
		approvals.POST("/process", middleware.RequireAdmin(), h.ProcessRequest)
	}
}

// CreateRequest submits a new approval request
// @Summary      Create approval request
// @Description  Submits a privileged operation for admin approval. Admins of the company are notified.
// @Description  Known request types are matched ignoring case, underscores and hyphens.
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateApprovalRequestDTO  true  "Approval request"
// @Success      201      {object}  response.Response{data=service.CreateApprovalResult}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/approval-requests [post]
func (h *ApprovalHandler) CreateRequest(c *gin.Context) {
	var req service.CreateApprovalRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.approvalService.Create(c.Request.Context(), middleware.GetRequestContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.SuccessWithMessage(http.StatusCreated, "Request submitted for approval", result))
}

// ListRequests returns approval requests of the caller's company
// @Summary      List approval requests
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        module        query     string  false  "Module code"
// @Param        status        query     string  false  "PENDING, APPROVED, REJECTED or CANCELLED"
// @Param        request_type  query     string  false  "Comma-separated request types"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Items per page (default 20)"
// @Success      200           {object}  response.Response{data=response.Page}
// @Router       /api/approval-requests [get]
func (h *ApprovalHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.ApprovalFilter{
		Module:       c.Query("module"),
		Status:       c.Query("status"),
		RequestTypes: pagination.CSV(c, "request_type"),
		Page:         p.Page,
		Limit:        p.Limit,
	}

	items, total, err := h.approvalService.List(c.Request.Context(), middleware.GetRequestContext(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, items, total, p.Page, p.Limit))
}

// PendingCount returns the number of pending requests
// @Summary      Count pending approval requests
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/approval-requests/pending-count [get]
func (h *ApprovalHandler) PendingCount(c *gin.Context) {
	count, err := h.approvalService.PendingCount(c.Request.Context(), middleware.GetRequestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"count": count}))
}

// GetDetails returns one request and marks it read
// @Summary      Approval request details
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/approval-requests/details/{id} [get]
func (h *ApprovalHandler) GetDetails(c *gin.Context) {
	item, err := h.approvalService.GetDetails(c.Request.Context(), middleware.GetRequestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// MyRequests lists the caller's own requests
// @Summary      My approval requests
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/approval-requests/my-requests [get]
func (h *ApprovalHandler) MyRequests(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.approvalService.MyRequests(c.Request.Context(), middleware.GetRequestContext(c), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, items, total, p.Page, p.Limit))
}

// ProcessRequest approves or rejects a pending request
// @Summary      Approve or reject
// @Description  Resolves a pending request. On approval the requested change is applied; the approval stands even if applying it fails.
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ProcessApprovalDTO  true  "Decision"
// @Success      200      {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/approval-requests/process [post]
func (h *ApprovalHandler) ProcessRequest(c *gin.Context) {
	var req service.ProcessApprovalDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.approvalService.Process(c.Request.Context(), middleware.GetRequestContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, result.Message, result.Request))
}

// ViewRequest shows a request to an admin or to the user who raised it
// @Summary      View approval request
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/approval-requests/view/{id} [get]
func (h *ApprovalHandler) ViewRequest(c *gin.Context) {
	item, err := h.approvalService.View(c.Request.Context(), middleware.GetRequestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// CancelRequest withdraws the caller's own pending request
// @Summary      Cancel approval request
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/approval-requests/{id}/cancel [post]
func (h *ApprovalHandler) CancelRequest(c *gin.Context) {
	item, err := h.approvalService.Cancel(c.Request.Context(), middleware.GetRequestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Request cancelled", item))
}
