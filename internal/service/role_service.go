package service

import (
	"context"
	"fmt"
	"strings"

	"compugear/internal/model"
	"compugear/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RoleResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `json:"is_system"`
}

// SuperAdminSeed is the optional platform operator account created at startup.
type SuperAdminSeed struct {
	Email    string
	Password string
}

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	// SeedDefaults upserts the fixed roles and ERP modules and creates the super admin when
	// seed credentials are given and no account with that email exists yet.
	SeedDefaults(ctx context.Context, admin SuperAdminSeed) error
}

type roleService struct {
	txManager  repository.TransactionManager
	roleRepo   repository.RoleRepository
	moduleRepo repository.ModuleRepository
	userRepo   repository.UserRepository
	log        *zap.Logger
}

func NewRoleService(
	txManager repository.TransactionManager,
	roleRepo repository.RoleRepository,
	moduleRepo repository.ModuleRepository,
	userRepo repository.UserRepository,
	log *zap.Logger,
) RoleService {
	return &roleService{
		txManager:  txManager,
		roleRepo:   roleRepo,
		moduleRepo: moduleRepo,
		userRepo:   userRepo,
		log:        log,
	}
}

var defaultRoles = []model.Role{
	{ID: model.RoleSuperAdmin, Name: "SUPER_ADMIN", Description: "Platform operator with access to every tenant"},
	{ID: model.RoleCompanyAdmin, Name: "COMPANY_ADMIN", Description: "Administers one company and approves its requests"},
	{ID: model.RoleSalesStaff, Name: "SALES_STAFF", Description: "Works in the Sales module"},
	{ID: model.RoleInventoryStaff, Name: "INVENTORY_STAFF", Description: "Works in the Inventory module"},
	{ID: model.RoleBillingStaff, Name: "BILLING_STAFF", Description: "Works in the Billing module"},
	{ID: model.RoleMarketingStaff, Name: "MARKETING_STAFF", Description: "Works in the Marketing module"},
	{ID: model.RoleSupportStaff, Name: "SUPPORT_STAFF", Description: "Works in the Support module"},
}

var defaultModules = []model.ERPModule{
	{Code: model.ModuleSales, Name: "Sales", Description: "Customers, leads and orders"},
	{Code: model.ModuleInventory, Name: "Inventory", Description: "Products, stock levels and adjustments"},
	{Code: model.ModuleBilling, Name: "Billing", Description: "Invoices, payments and refunds"},
	{Code: model.ModuleMarketing, Name: "Marketing", Description: "Campaigns and promotions"},
	{Code: model.ModuleSupport, Name: "Support", Description: "Tickets and customer service"},
}

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, RoleResponse{ID: r.ID, Name: r.Name, Description: r.Description, IsSystem: r.IsSystem})
	}
	return res, nil
}

func (s *roleService) SeedDefaults(ctx context.Context, admin SuperAdminSeed) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i := range defaultRoles {
			role := defaultRoles[i]
			role.IsSystem = true
			if err := s.roleRepo.Upsert(txCtx, &role); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", role.Name, err)
			}
		}

		for i := range defaultModules {
			m := defaultModules[i]
			m.IsActive = true
			if err := s.moduleRepo.UpsertModule(txCtx, &m); err != nil {
				return fmt.Errorf("failed to seed module '%s': %w", m.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if admin.Email == "" || admin.Password == "" {
		return nil
	}
	return s.seedSuperAdmin(ctx, admin)
}

func (s *roleService) seedSuperAdmin(ctx context.Context, admin SuperAdminSeed) error {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check super admin: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash super admin password: %w", err)
	}
	user := &model.User{
		RoleID:    model.RoleSuperAdmin,
		FirstName: "Super",
		LastName:  "Admin",
		Username:  email,
		Email:     email,
		Password:  string(hash),
		IsActive:  true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to seed super admin: %w", err)
	}
	s.log.Info("seeded super admin", zap.String("email", email))
	return nil
}
