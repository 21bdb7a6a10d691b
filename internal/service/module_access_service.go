package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/google/uuid"
)

type RoleModuleAccessUpdate struct {
	RoleID     int    `json:"role_id" binding:"required"`
	ModuleCode string `json:"module_code" binding:"required"`
	HasAccess  bool   `json:"has_access"`
}

type UpdateRoleAccessRequest struct {
	Updates []RoleModuleAccessUpdate `json:"updates" binding:"required,min=1,dive"`
}

type RoleAccessEntry struct {
	ModuleCode string `json:"module_code"`
	HasAccess  bool   `json:"has_access"`
	Configured bool   `json:"configured"`
}

type RoleAccessRow struct {
	RoleID  int               `json:"role_id"`
	Modules []RoleAccessEntry `json:"modules"`
}

// RoleModuleMatrix is the admin view of the module gate for one company.
type RoleModuleMatrix struct {
	CompanyID      string          `json:"company_id"`
	EnabledModules []string        `json:"enabled_modules"`
	Roles          []RoleAccessRow `json:"roles"`
}

type ModuleAccessService interface {
	// HasModuleAccess requires an enabled company module, then allows the role if it has no
	// rules configured at all or an explicit rule granting the module.
	HasModuleAccess(ctx context.Context, companyID uuid.UUID, roleID int, moduleCode string) (bool, error)
	// CheckAccess applies HasModuleAccess to the caller. Super admins always pass.
	CheckAccess(ctx context.Context, rc model.RequestContext, moduleCode string) (bool, error)
	Matrix(ctx context.Context, rc model.RequestContext) (RoleModuleMatrix, error)
	UpdateRoleAccess(ctx context.Context, rc model.RequestContext, updates []RoleModuleAccessUpdate) (RoleModuleMatrix, error)
}

type accessCacheEntry struct {
	allowed   bool
	expiresAt time.Time
}

type moduleAccessService struct {
	repo      repository.ModuleRepository
	txManager repository.TransactionManager
	audit     AuditService

	cache    sync.Map // "company:role:module" -> accessCacheEntry
	cacheTTL time.Duration
}

func NewModuleAccessService(repo repository.ModuleRepository, txManager repository.TransactionManager, audit AuditService, cacheTTL time.Duration) ModuleAccessService {
	return &moduleAccessService{repo: repo, txManager: txManager, audit: audit, cacheTTL: cacheTTL}
}

func (s *moduleAccessService) HasModuleAccess(ctx context.Context, companyID uuid.UUID, roleID int, moduleCode string) (bool, error) {
	key := fmt.Sprintf("%s:%d:%s", companyID, roleID, moduleCode)
	if s.cacheTTL > 0 {
		if entry, ok := s.cache.Load(key); ok {
			cached := entry.(accessCacheEntry)
			if time.Now().Before(cached.expiresAt) {
				return cached.allowed, nil
			}
		}
	}

	allowed, err := s.evaluate(ctx, companyID, roleID, moduleCode)
	if err != nil {
		return false, err
	}

	if s.cacheTTL > 0 {
		s.cache.Store(key, accessCacheEntry{allowed: allowed, expiresAt: time.Now().Add(s.cacheTTL)})
	}
	return allowed, nil
}

func (s *moduleAccessService) evaluate(ctx context.Context, companyID uuid.UUID, roleID int, moduleCode string) (bool, error) {
	enabled, err := s.repo.CompanyHasModule(ctx, companyID, moduleCode)
	if err != nil {
		return false, fmt.Errorf("failed to check company module: %w", err)
	}
	if !enabled {
		return false, nil
	}

	rules, err := s.repo.CountRoleRules(ctx, companyID, roleID)
	if err != nil {
		return false, fmt.Errorf("failed to count role rules: %w", err)
	}
	if rules == 0 {
		return true, nil
	}

	rule, err := s.repo.FindRoleRule(ctx, companyID, roleID, moduleCode)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load role rule: %w", err)
	}
	return rule.HasAccess, nil
}

func (s *moduleAccessService) CheckAccess(ctx context.Context, rc model.RequestContext, moduleCode string) (bool, error) {
	if !rc.IsAuthenticated() {
		return false, ErrUnauthenticated
	}
	if rc.IsSuperAdmin() {
		return true, nil
	}
	if rc.CompanyID == nil {
		return false, nil
	}
	return s.HasModuleAccess(ctx, *rc.CompanyID, rc.RoleID, moduleCode)
}

func (s *moduleAccessService) Matrix(ctx context.Context, rc model.RequestContext) (RoleModuleMatrix, error) {
	if !rc.IsAdmin() {
		return RoleModuleMatrix{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if rc.CompanyID == nil {
		return RoleModuleMatrix{}, fmt.Errorf("%w: caller has no company", ErrValidation)
	}
	return s.buildMatrix(ctx, *rc.CompanyID)
}

func (s *moduleAccessService) buildMatrix(ctx context.Context, companyID uuid.UUID) (RoleModuleMatrix, error) {
	companyModules, err := s.repo.ListCompanyModules(ctx, companyID)
	if err != nil {
		return RoleModuleMatrix{}, fmt.Errorf("failed to list company modules: %w", err)
	}
	rules, err := s.repo.ListRoleAccess(ctx, companyID)
	if err != nil {
		return RoleModuleMatrix{}, fmt.Errorf("failed to list role access: %w", err)
	}

	matrix := RoleModuleMatrix{CompanyID: companyID.String(), EnabledModules: []string{}}
	for _, cm := range companyModules {
		if cm.IsEnabled && cm.Module != nil {
			matrix.EnabledModules = append(matrix.EnabledModules, cm.Module.Code)
		}
	}

	byRole := make(map[int]map[string]bool)
	for _, r := range rules {
		if byRole[r.RoleID] == nil {
			byRole[r.RoleID] = make(map[string]bool)
		}
		byRole[r.RoleID][r.ModuleCode] = r.HasAccess
	}

	for _, roleID := range model.ManagedRoles {
		row := RoleAccessRow{RoleID: roleID}
		configured := byRole[roleID]
		for _, code := range model.ManagedModules {
			has, ok := configured[code]
			if len(configured) == 0 {
				has = true
			}
			row.Modules = append(row.Modules, RoleAccessEntry{ModuleCode: code, HasAccess: has, Configured: ok})
		}
		matrix.Roles = append(matrix.Roles, row)
	}
	return matrix, nil
}

func (s *moduleAccessService) UpdateRoleAccess(ctx context.Context, rc model.RequestContext, updates []RoleModuleAccessUpdate) (RoleModuleMatrix, error) {
	if !rc.IsAdmin() {
		return RoleModuleMatrix{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if rc.CompanyID == nil {
		return RoleModuleMatrix{}, fmt.Errorf("%w: caller has no company", ErrValidation)
	}
	if len(updates) == 0 {
		return RoleModuleMatrix{}, fmt.Errorf("%w: no updates given", ErrValidation)
	}
	for _, u := range updates {
		if !model.IsManagedRole(u.RoleID) {
			return RoleModuleMatrix{}, fmt.Errorf("%w: role %d is not configurable", ErrValidation, u.RoleID)
		}
		if !isManagedModule(u.ModuleCode) {
			return RoleModuleMatrix{}, fmt.Errorf("%w: unknown module %q", ErrValidation, u.ModuleCode)
		}
	}

	companyID := *rc.CompanyID
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, u := range updates {
			row := model.RoleModuleAccess{
				CompanyID:  companyID,
				RoleID:     u.RoleID,
				ModuleCode: u.ModuleCode,
				HasAccess:  u.HasAccess,
			}
			if err := s.repo.SetRoleAccess(txCtx, &row); err != nil {
				return fmt.Errorf("failed to update role access: %w", err)
			}
		}

		userID := rc.UserID
		return s.audit.Record(txCtx, AuditEntry{
			CompanyID:  &companyID,
			UserID:     &userID,
			Action:     model.ActionUpdateRoleModuleAccess,
			EntityID:   companyID.String(),
			EntityName: "role_module_access",
			Details:    map[string]interface{}{"updates": updates},
		})
	})
	if err != nil {
		return RoleModuleMatrix{}, err
	}

	s.invalidateCompany(companyID)
	return s.buildMatrix(ctx, companyID)
}

func (s *moduleAccessService) invalidateCompany(companyID uuid.UUID) {
	prefix := companyID.String() + ":"
	s.cache.Range(func(key, _ interface{}) bool {
		if k, ok := key.(string); ok && strings.HasPrefix(k, prefix) {
			s.cache.Delete(key)
		}
		return true
	})
}

func isManagedModule(code string) bool {
	for _, m := range model.ManagedModules {
		if m == code {
			return true
		}
	}
	return false
}
