package service

import (
	"compugear/internal/model"

	"github.com/google/uuid"
)

// tenantFilter returns nil for super admins, who see every tenant, and the caller's company
// otherwise. A caller without a company gets a filter that matches nothing.
func tenantFilter(rc model.RequestContext) *uuid.UUID {
	if rc.IsSuperAdmin() {
		return nil
	}
	if rc.CompanyID == nil {
		none := uuid.Nil
		return &none
	}
	id := *rc.CompanyID
	return &id
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}
