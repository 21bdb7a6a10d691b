package repository

import (
	"context"
	"time"

	"compugear/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ModuleRepository covers the module catalog and both access tables.
type ModuleRepository interface {
	ListModules(ctx context.Context, activeOnly bool) ([]model.ERPModule, error)
	FindModulesByCodes(ctx context.Context, codes []string) ([]model.ERPModule, error)
	UpsertModule(ctx context.Context, m *model.ERPModule) error

	CreateCompanyAccess(ctx context.Context, rows []model.CompanyModuleAccess) error
	CompanyHasModule(ctx context.Context, companyID uuid.UUID, moduleCode string) (bool, error)
	ListCompanyModules(ctx context.Context, companyID uuid.UUID) ([]model.CompanyModuleAccess, error)

	CreateRoleAccess(ctx context.Context, rows []model.RoleModuleAccess) error
	ListRoleAccess(ctx context.Context, companyID uuid.UUID) ([]model.RoleModuleAccess, error)
	CountRoleRules(ctx context.Context, companyID uuid.UUID, roleID int) (int64, error)
	FindRoleRule(ctx context.Context, companyID uuid.UUID, roleID int, moduleCode string) (*model.RoleModuleAccess, error)
	// SetRoleAccess inserts the rule or flips HasAccess on the existing one.
	SetRoleAccess(ctx context.Context, row *model.RoleModuleAccess) error
}

type moduleRepository struct {
	db *gorm.DB
}

func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) ListModules(ctx context.Context, activeOnly bool) ([]model.ERPModule, error) {
	var modules []model.ERPModule
	q := GetDB(ctx, r.db)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("code asc").Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepository) FindModulesByCodes(ctx context.Context, codes []string) ([]model.ERPModule, error) {
	var modules []model.ERPModule
	if err := GetDB(ctx, r.db).Where("code IN ?", codes).Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepository) UpsertModule(ctx context.Context, m *model.ERPModule) error {
	return GetDB(ctx, r.db).
		Where("code = ?", m.Code).
		Assign(model.ERPModule{Name: m.Name, Description: m.Description}).
		FirstOrCreate(m).Error
}

func (r *moduleRepository) CreateCompanyAccess(ctx context.Context, rows []model.CompanyModuleAccess) error {
	if len(rows) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&rows).Error
}

func (r *moduleRepository) CompanyHasModule(ctx context.Context, companyID uuid.UUID, moduleCode string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.CompanyModuleAccess{}).
		Joins("JOIN erp_modules ON erp_modules.id = company_module_access.module_id").
		Where("company_module_access.company_id = ? AND company_module_access.is_enabled = ? AND erp_modules.code = ?",
			companyID, true, moduleCode).
		Count(&count).Error
	return count > 0, err
}

func (r *moduleRepository) ListCompanyModules(ctx context.Context, companyID uuid.UUID) ([]model.CompanyModuleAccess, error) {
	var rows []model.CompanyModuleAccess
	if err := GetDB(ctx, r.db).Preload("Module").Where("company_id = ?", companyID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *moduleRepository) CreateRoleAccess(ctx context.Context, rows []model.RoleModuleAccess) error {
	if len(rows) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&rows).Error
}

func (r *moduleRepository) ListRoleAccess(ctx context.Context, companyID uuid.UUID) ([]model.RoleModuleAccess, error) {
	var rows []model.RoleModuleAccess
	if err := GetDB(ctx, r.db).Where("company_id = ?", companyID).
		Order("role_id asc, module_code asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *moduleRepository) CountRoleRules(ctx context.Context, companyID uuid.UUID, roleID int) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.RoleModuleAccess{}).
		Where("company_id = ? AND role_id = ?", companyID, roleID).
		Count(&count).Error
	return count, err
}

func (r *moduleRepository) FindRoleRule(ctx context.Context, companyID uuid.UUID, roleID int, moduleCode string) (*model.RoleModuleAccess, error) {
	var row model.RoleModuleAccess
	if err := GetDB(ctx, r.db).
		Where("company_id = ? AND role_id = ? AND module_code = ?", companyID, roleID, moduleCode).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *moduleRepository) SetRoleAccess(ctx context.Context, row *model.RoleModuleAccess) error {
	row.UpdatedAt = time.Now()
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "role_id"}, {Name: "module_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"has_access", "updated_at"}),
	}).Create(row).Error
}
