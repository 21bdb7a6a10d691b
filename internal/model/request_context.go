package model

import "github.com/google/uuid"

// RequestContext identifies the caller of a service operation. It is built by the auth
// middleware from the access token and passed explicitly into every service call.
type RequestContext struct {
	UserID    uuid.UUID
	RoleID    int
	CompanyID *uuid.UUID
}

func (rc RequestContext) IsAuthenticated() bool {
	return rc.UserID != uuid.Nil
}

func (rc RequestContext) IsAdmin() bool {
	return rc.IsAuthenticated() && IsAdminRole(rc.RoleID)
}

func (rc RequestContext) IsSuperAdmin() bool {
	return rc.IsAuthenticated() && rc.RoleID == RoleSuperAdmin
}

// SameCompany reports whether the given tenant id matches the caller's tenant.
func (rc RequestContext) SameCompany(companyID *uuid.UUID) bool {
	if rc.CompanyID == nil || companyID == nil {
		return rc.CompanyID == nil && companyID == nil
	}
	return *rc.CompanyID == *companyID
}
