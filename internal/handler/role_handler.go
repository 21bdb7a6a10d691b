package handler

import (
	"net/http"
	"strings"

	"compugear/internal/middleware"
	"compugear/internal/service"
	"compugear/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService   service.RoleService
	accessService service.ModuleAccessService
}

func NewRoleHandler(roleService service.RoleService, accessService service.ModuleAccessService) *RoleHandler {
	return &RoleHandler{roleService: roleService, accessService: accessService}
}

// RegisterRoutes expects a group that already runs RequireAuth.
func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/roles", h.ListRoles)
	router.GET("/module-access/check", h.CheckModuleAccess)

	matrix := router.Group("/role-module-access", middleware.RequireAdmin())
	{
		matrix.GET("", h.GetMatrix)
		matrix.PUT("", h.UpdateMatrix)
	}
}

// ListRoles returns the fixed role catalog
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// CheckModuleAccess tells the caller whether a module is open to them
// @Summary      Check module access
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        module  query     string  true  "Module code"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/module-access/check [get]
func (h *RoleHandler) CheckModuleAccess(c *gin.Context) {
	module := strings.ToUpper(strings.TrimSpace(c.Query("module")))
	if module == "" {
		badRequest(c, "module is required")
		return
	}

	allowed, err := h.accessService.CheckAccess(c.Request.Context(), middleware.GetRequestContext(c), module)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"module": module, "has_access": allowed}))
}

// GetMatrix returns the company's role-module access matrix
// @Summary      Get role-module access
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.RoleModuleMatrix}
// @Router       /api/role-module-access [get]
func (h *RoleHandler) GetMatrix(c *gin.Context) {
	matrix, err := h.accessService.Matrix(c.Request.Context(), middleware.GetRequestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, matrix))
}

// UpdateMatrix grants or revokes modules per role
// @Summary      Update role-module access
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.UpdateRoleAccessRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=service.RoleModuleMatrix}
// @Failure      400      {object}  response.Response
// @Router       /api/role-module-access [put]
func (h *RoleHandler) UpdateMatrix(c *gin.Context) {
	var req service.UpdateRoleAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	matrix, err := h.accessService.UpdateRoleAccess(c.Request.Context(), middleware.GetRequestContext(c), req.Updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Module access updated", matrix))
}
