package handler

import (
	"net/http"

	"compugear/internal/service"
	"compugear/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebsiteHandler serves the public marketing site's sign-up flow.
type WebsiteHandler struct {
	subscriptionService service.SubscriptionService
	checkoutService     service.CheckoutService
}

func NewWebsiteHandler(subscriptionService service.SubscriptionService, checkoutService service.CheckoutService) *WebsiteHandler {
	return &WebsiteHandler{subscriptionService: subscriptionService, checkoutService: checkoutService}
}

// RegisterRoutes binds the public (unauthenticated) endpoints.
func (h *WebsiteHandler) RegisterRoutes(router *gin.RouterGroup) {
	site := router.Group("/erpwebsite")
	{
		site.GET("/plans", h.Plans)
		site.GET("/modules", h.Modules)
		site.POST("/subscribe", h.Subscribe)
		site.POST("/create-checkout", h.CreateCheckout)
		site.POST("/verify-payment", h.VerifyPayment)
	}
}

// Plans lists the subscription plans
// @Summary      List plans
// @Tags         website
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.Plan}
// @Router       /api/erpwebsite/plans [get]
func (h *WebsiteHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.subscriptionService.Plans()))
}

// Modules lists the purchasable ERP modules
// @Summary      List modules
// @Tags         website
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ModuleResponse}
// @Router       /api/erpwebsite/modules [get]
func (h *WebsiteHandler) Modules(c *gin.Context) {
	modules, err := h.subscriptionService.Modules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, modules))
}

// Subscribe provisions a tenant immediately
// @Summary      Subscribe
// @Description  Creates the company, its admin account, subscription and module access in one step.
// @Tags         website
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubscribeRequest  true  "Registration"
// @Success      201      {object}  response.Response{data=service.ProvisionResult}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/erpwebsite/subscribe [post]
func (h *WebsiteHandler) Subscribe(c *gin.Context) {
	var req service.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.subscriptionService.Subscribe(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.SuccessWithMessage(http.StatusCreated, "Subscription created", result))
}

// CreateCheckout starts a hosted payment for a registration
// @Summary      Create checkout
// @Description  Validates the registration, opens a checkout session and holds the registration until payment is verified.
// @Tags         website
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubscribeRequest  true  "Registration"
// @Success      200      {object}  response.Response{data=service.CheckoutResult}
// @Failure      400      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /api/erpwebsite/create-checkout [post]
func (h *WebsiteHandler) CreateCheckout(c *gin.Context) {
	var req service.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.checkoutService.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// VerifyPayment provisions the tenant once the checkout is paid
// @Summary      Verify payment
// @Description  Safe to call repeatedly; a registration is provisioned at most once.
// @Tags         website
// @Accept       json
// @Produce      json
// @Param        payload  body      service.VerifyPaymentRequest  true  "Registration and session"
// @Success      200      {object}  response.Response{data=service.VerifyResult}
// @Failure      402      {object}  response.Response
// @Failure      410      {object}  response.Response
// @Router       /api/erpwebsite/verify-payment [post]
func (h *WebsiteHandler) VerifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.checkoutService.VerifyPaymentAndRegister(c.Request.Context(), req.RegistrationID, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Payment verified and account created"
	if result.AlreadyProvisioned {
		msg = "Account already created for this payment"
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, msg, result))
}
