package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"compugear/internal/metrics"
	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Plan is a fixed subscription tier.
type Plan struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	AnnualFee   decimal.Decimal `json:"annual_fee"`
	MaxUsers    int             `json:"max_users"`
	Modules     []string        `json:"modules"`
}

const (
	PlanBasic = "Basic"
	PlanPro   = "Pro"

	// annualMonths is what an annual subscription costs in monthly fees.
	annualMonths = 10
)

var plans = []Plan{
	{
		Name:        PlanBasic,
		Description: "Sales and inventory for small teams",
		MonthlyFee:  decimal.NewFromInt(2499),
		MaxUsers:    50,
		Modules:     []string{model.ModuleSales, model.ModuleInventory},
	},
	{
		Name:        PlanPro,
		Description: "Every CompuGear module",
		MonthlyFee:  decimal.NewFromInt(4999),
		MaxUsers:    200,
		Modules:     append([]string(nil), model.ManagedModules...),
	},
}

func init() {
	for i := range plans {
		plans[i].AnnualFee = plans[i].MonthlyFee.Mul(decimal.NewFromInt(annualMonths))
	}
}

// LookupPlan matches a plan name case-insensitively.
func LookupPlan(name string) (Plan, bool) {
	for _, p := range plans {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Plan{}, false
}

// Amount is what one billing period of the plan costs.
func (p Plan) Amount(billingCycle string) decimal.Decimal {
	if billingCycle == model.BillingCycleAnnual {
		return p.AnnualFee
	}
	return p.MonthlyFee
}

// --- DTOs ---

type SubscribeRequest struct {
	CompanyName    string   `json:"company_name" validate:"required"`
	CompanyEmail   string   `json:"company_email" validate:"required,email"`
	CompanyPhone   string   `json:"company_phone" validate:"required"`
	CompanyAddress string   `json:"company_address"`
	Industry       string   `json:"industry"`
	AdminFirstName string   `json:"admin_first_name" validate:"required"`
	AdminLastName  string   `json:"admin_last_name" validate:"required"`
	AdminEmail     string   `json:"admin_email" validate:"required,email"`
	AdminPhone     string   `json:"admin_phone"`
	AdminPassword  string   `json:"admin_password" validate:"required,min=8"`
	PlanName       string   `json:"plan_name"`
	BillingCycle   string   `json:"billing_cycle"`
	Modules        []string `json:"modules"`
}

// PreparedRegistration is a validated sign-up ready for provisioning.
type PreparedRegistration struct {
	CompanyName    string
	CompanyEmail   string
	CompanyPhone   string
	CompanyAddress string
	Industry       string
	AdminFirstName string
	AdminLastName  string
	AdminEmail     string
	AdminPhone     string
	PasswordHash   string
	Plan           Plan
	BillingCycle   string
	Modules        []string
}

// ProvisionOptions describe how a tenant is being created.
type ProvisionOptions struct {
	EntryPoint       string
	PaymentReference string
	AmountPaid       decimal.Decimal
}

type ProvisionResult struct {
	CompanyID      string   `json:"company_id"`
	CompanyCode    string   `json:"company_code"`
	CompanyName    string   `json:"company_name"`
	AdminEmail     string   `json:"admin_email"`
	PlanName       string   `json:"plan_name"`
	BillingCycle   string   `json:"billing_cycle"`
	SubscriptionID string   `json:"subscription_id"`
	Modules        []string `json:"modules"`
}

type ModuleResponse struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Provisioning entry points
const (
	EntryPointDirect   = "direct"
	EntryPointCheckout = "checkout"
)

// --- Interface ---

type SubscriptionService interface {
	Validate(ctx context.Context, req SubscribeRequest) (PreparedRegistration, error)
	Provision(ctx context.Context, prep PreparedRegistration, opts ProvisionOptions) (ProvisionResult, error)
	Subscribe(ctx context.Context, req SubscribeRequest) (ProvisionResult, error)
	// ExistingRegistration reports a tenant already fully provisioned for these emails.
	// It returns ErrDuplicateRegistration when the emails are taken in any other shape.
	ExistingRegistration(ctx context.Context, companyEmail, adminEmail string) (*ProvisionResult, error)
	Plans() []Plan
	Modules(ctx context.Context) ([]ModuleResponse, error)
}

type subscriptionService struct {
	txManager   repository.TransactionManager
	companyRepo repository.CompanyRepository
	userRepo    repository.UserRepository
	moduleRepo  repository.ModuleRepository
	log         *zap.Logger
	now         func() time.Time
	retries     int
}

func NewSubscriptionService(
	txManager repository.TransactionManager,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	moduleRepo repository.ModuleRepository,
	log *zap.Logger,
) SubscriptionService {
	return &subscriptionService{
		txManager:   txManager,
		companyRepo: companyRepo,
		userRepo:    userRepo,
		moduleRepo:  moduleRepo,
		log:         log,
		now:         time.Now,
		retries:     3,
	}
}

func (s *subscriptionService) Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func (s *subscriptionService) Modules(ctx context.Context) ([]ModuleResponse, error) {
	modules, err := s.moduleRepo.ListModules(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	res := make([]ModuleResponse, 0, len(modules))
	for _, m := range modules {
		res = append(res, ModuleResponse{Code: m.Code, Name: m.Name, Description: m.Description})
	}
	return res, nil
}

func (s *subscriptionService) Validate(ctx context.Context, req SubscribeRequest) (PreparedRegistration, error) {
	prep := PreparedRegistration{
		CompanyName:    strings.TrimSpace(req.CompanyName),
		CompanyEmail:   strings.ToLower(strings.TrimSpace(req.CompanyEmail)),
		CompanyPhone:   strings.TrimSpace(req.CompanyPhone),
		CompanyAddress: strings.TrimSpace(req.CompanyAddress),
		Industry:       strings.TrimSpace(req.Industry),
		AdminFirstName: strings.TrimSpace(req.AdminFirstName),
		AdminLastName:  strings.TrimSpace(req.AdminLastName),
		AdminEmail:     strings.ToLower(strings.TrimSpace(req.AdminEmail)),
		AdminPhone:     strings.TrimSpace(req.AdminPhone),
	}

	// Validation runs on the normalised values so only a bare address is ever stored.
	normalized := req
	normalized.CompanyName = prep.CompanyName
	normalized.CompanyEmail = prep.CompanyEmail
	normalized.CompanyPhone = prep.CompanyPhone
	normalized.AdminFirstName = prep.AdminFirstName
	normalized.AdminLastName = prep.AdminLastName
	normalized.AdminEmail = prep.AdminEmail
	if err := validateStruct(normalized); err != nil {
		return prep, err
	}

	plan, ok := LookupPlan(req.PlanName)
	if !ok {
		return prep, fmt.Errorf("%w: plan must be %s or %s", ErrValidation, PlanBasic, PlanPro)
	}
	prep.Plan = plan

	cycle, err := normalizeBillingCycle(req.BillingCycle)
	if err != nil {
		return prep, err
	}
	prep.BillingCycle = cycle

	prep.Modules = ResolveModules(plan, req.Modules)
	if len(prep.Modules) == 0 {
		return prep, fmt.Errorf("%w: no modules selected", ErrValidation)
	}
	if err := s.ensureModulesActive(ctx, prep.Modules); err != nil {
		return prep, err
	}

	taken, err := s.companyRepo.EmailExists(ctx, prep.CompanyEmail)
	if err != nil {
		return prep, fmt.Errorf("failed to check company email: %w", err)
	}
	if taken {
		return prep, fmt.Errorf("%w: a company with this email is already registered", ErrDuplicateRegistration)
	}
	if taken, err = s.adminEmailTaken(ctx, prep.AdminEmail); err != nil {
		return prep, err
	}
	if taken {
		return prep, fmt.Errorf("%w: the admin email is already registered", ErrDuplicateRegistration)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return prep, fmt.Errorf("failed to hash password: %w", err)
	}
	prep.PasswordHash = string(hash)
	return prep, nil
}

// ResolveModules keeps the requested codes the plan allows, in plan order. An empty or
// entirely invalid selection falls back to the full plan.
func ResolveModules(plan Plan, requested []string) []string {
	want := make(map[string]bool, len(requested))
	for _, code := range requested {
		want[strings.ToUpper(strings.TrimSpace(code))] = true
	}

	var resolved []string
	for _, code := range plan.Modules {
		if want[code] {
			resolved = append(resolved, code)
		}
	}
	if len(resolved) == 0 {
		return append([]string(nil), plan.Modules...)
	}
	return resolved
}

func (s *subscriptionService) ensureModulesActive(ctx context.Context, codes []string) error {
	modules, err := s.moduleRepo.FindModulesByCodes(ctx, codes)
	if err != nil {
		return fmt.Errorf("failed to load modules: %w", err)
	}
	active := make(map[string]bool, len(modules))
	for _, m := range modules {
		active[m.Code] = m.IsActive
	}
	for _, code := range codes {
		if !active[code] {
			return fmt.Errorf("%w: module %s is not available", ErrValidation, code)
		}
	}
	return nil
}

func (s *subscriptionService) adminEmailTaken(ctx context.Context, email string) (bool, error) {
	asCompany, err := s.companyRepo.EmailExists(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to check admin email: %w", err)
	}
	asUser, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to check admin email: %w", err)
	}
	return asCompany || asUser, nil
}

func (s *subscriptionService) Subscribe(ctx context.Context, req SubscribeRequest) (ProvisionResult, error) {
	prep, err := s.Validate(ctx, req)
	if err != nil {
		metrics.RecordProvisioning(EntryPointDirect, "rejected")
		return ProvisionResult{}, err
	}
	return s.Provision(ctx, prep, ProvisionOptions{EntryPoint: EntryPointDirect, AmountPaid: decimal.Zero})
}

func (s *subscriptionService) Provision(ctx context.Context, prep PreparedRegistration, opts ProvisionOptions) (ProvisionResult, error) {
	var result ProvisionResult
	err := s.txManager.RunInTxWithRetry(ctx, s.retries, func(txCtx context.Context) error {
		r, txErr := s.provisionTx(txCtx, prep, opts)
		if txErr != nil {
			return txErr
		}
		result = r
		return nil
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			metrics.RecordProvisioning(opts.EntryPoint, "duplicate")
			return ProvisionResult{}, fmt.Errorf("%w: company or admin email is already registered", ErrDuplicateRegistration)
		}
		metrics.RecordProvisioning(opts.EntryPoint, "failed")
		return ProvisionResult{}, err
	}

	metrics.RecordProvisioning(opts.EntryPoint, "created")
	s.log.Info("tenant provisioned",
		zap.String("company_id", result.CompanyID),
		zap.String("company_code", result.CompanyCode),
		zap.String("plan", result.PlanName),
		zap.String("entry_point", opts.EntryPoint))
	return result, nil
}

// provisionTx performs every insert of a new tenant. Any error undoes the whole attempt.
func (s *subscriptionService) provisionTx(ctx context.Context, prep PreparedRegistration, opts ProvisionOptions) (ProvisionResult, error) {
	now := s.now()

	code, err := s.generateCompanyCode(ctx, now)
	if err != nil {
		return ProvisionResult{}, err
	}

	company := model.Company{
		CompanyCode: code,
		Name:        prep.CompanyName,
		Email:       prep.CompanyEmail,
		Phone:       prep.CompanyPhone,
		Address:     prep.CompanyAddress,
		Industry:    prep.Industry,
		Status:      model.CompanyStatusActive,
	}
	if err := s.companyRepo.Create(ctx, &company); err != nil {
		return ProvisionResult{}, fmt.Errorf("failed to create company: %w", err)
	}

	admin := model.User{
		CompanyID: &company.ID,
		RoleID:    model.RoleCompanyAdmin,
		FirstName: prep.AdminFirstName,
		LastName:  prep.AdminLastName,
		Username:  prep.AdminEmail,
		Email:     prep.AdminEmail,
		Phone:     prep.AdminPhone,
		Password:  prep.PasswordHash,
		IsActive:  true,
	}
	if err := s.userRepo.Create(ctx, &admin); err != nil {
		return ProvisionResult{}, fmt.Errorf("failed to create admin user: %w", err)
	}

	end := now.AddDate(0, 1, 0)
	if prep.BillingCycle == model.BillingCycleAnnual {
		end = now.AddDate(1, 0, 0)
	}
	sub := model.CompanySubscription{
		CompanyID:        company.ID,
		PlanName:         prep.Plan.Name,
		BillingCycle:     prep.BillingCycle,
		MonthlyFee:       prep.Plan.MonthlyFee,
		AmountPaid:       opts.AmountPaid,
		MaxUsers:         prep.Plan.MaxUsers,
		Status:           model.SubscriptionActive,
		StartDate:        now,
		EndDate:          end,
		PaymentReference: opts.PaymentReference,
	}
	if err := s.companyRepo.CreateSubscription(ctx, &sub); err != nil {
		return ProvisionResult{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	modules, err := s.moduleRepo.FindModulesByCodes(ctx, prep.Modules)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("failed to load modules: %w", err)
	}
	if len(modules) != len(prep.Modules) {
		return ProvisionResult{}, fmt.Errorf("%w: one or more modules no longer exist", ErrValidation)
	}
	access := make([]model.CompanyModuleAccess, 0, len(modules))
	for _, m := range modules {
		access = append(access, model.CompanyModuleAccess{
			CompanyID:   company.ID,
			ModuleID:    m.ID,
			IsEnabled:   true,
			ActivatedAt: now,
		})
	}
	if err := s.moduleRepo.CreateCompanyAccess(ctx, access); err != nil {
		return ProvisionResult{}, fmt.Errorf("failed to grant modules: %w", err)
	}

	if err := s.moduleRepo.CreateRoleAccess(ctx, BuildRoleModuleMatrix(company.ID, prep.Modules)); err != nil {
		return ProvisionResult{}, fmt.Errorf("failed to create role module access: %w", err)
	}

	details, _ := json.Marshal(map[string]interface{}{
		"plan":              prep.Plan.Name,
		"billing_cycle":     prep.BillingCycle,
		"modules":           prep.Modules,
		"admin_email":       prep.AdminEmail,
		"entry_point":       opts.EntryPoint,
		"payment_reference": opts.PaymentReference,
		"amount_paid":       opts.AmountPaid.StringFixed(2),
	})
	if err := s.companyRepo.LogUsage(ctx, &model.PlatformUsageLog{
		CompanyID: company.ID,
		Action:    model.UsageSubscriptionCreated,
		Details:   string(details),
	}); err != nil {
		return ProvisionResult{}, fmt.Errorf("failed to write usage log: %w", err)
	}

	return ProvisionResult{
		CompanyID:      company.ID.String(),
		CompanyCode:    company.CompanyCode,
		CompanyName:    company.Name,
		AdminEmail:     admin.Email,
		PlanName:       prep.Plan.Name,
		BillingCycle:   prep.BillingCycle,
		SubscriptionID: sub.ID.String(),
		Modules:        append([]string(nil), prep.Modules...),
	}, nil
}

// BuildRoleModuleMatrix returns one row per managed role and managed module. The company
// admin gets every selected module; each staff role gets only the selected module it owns.
func BuildRoleModuleMatrix(companyID uuid.UUID, selected []string) []model.RoleModuleAccess {
	chosen := make(map[string]bool, len(selected))
	for _, code := range selected {
		chosen[code] = true
	}

	rows := make([]model.RoleModuleAccess, 0, len(model.ManagedRoles)*len(model.ManagedModules))
	for _, roleID := range model.ManagedRoles {
		for _, code := range model.ManagedModules {
			has := false
			if chosen[code] {
				has = roleID == model.RoleCompanyAdmin || model.ModuleOwnerRole[code] == roleID
			}
			rows = append(rows, model.RoleModuleAccess{
				CompanyID:  companyID,
				RoleID:     roleID,
				ModuleCode: code,
				HasAccess:  has,
			})
		}
	}
	return rows
}

// generateCompanyCode returns CG-YYYYMMDD-NNNN.
func (s *subscriptionService) generateCompanyCode(ctx context.Context, now time.Time) (string, error) {
	prefix := "CG-" + now.Format("20060102") + "-"
	for i := 0; i < 10; i++ {
		code := fmt.Sprintf("%s%04d", prefix, rand.IntN(10000))
		exists, err := s.companyRepo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check company code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique company code")
}

func (s *subscriptionService) ExistingRegistration(ctx context.Context, companyEmail, adminEmail string) (*ProvisionResult, error) {
	companyEmail = strings.ToLower(strings.TrimSpace(companyEmail))
	adminEmail = strings.ToLower(strings.TrimSpace(adminEmail))

	company, err := s.companyRepo.FindByEmail(ctx, companyEmail)
	if err != nil && !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up company: %w", err)
	}
	admin, err := s.userRepo.GetByEmail(ctx, adminEmail)
	if err != nil && !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}

	if company == nil && admin == nil {
		adminAsCompany, err := s.companyRepo.EmailExists(ctx, adminEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to look up admin email: %w", err)
		}
		if adminAsCompany {
			return nil, fmt.Errorf("%w: the admin email is already registered", ErrDuplicateRegistration)
		}
		return nil, nil
	}
	if company == nil || admin == nil || admin.CompanyID == nil || *admin.CompanyID != company.ID {
		return nil, fmt.Errorf("%w: company or admin email is already registered", ErrDuplicateRegistration)
	}

	sub, err := s.companyRepo.ActiveSubscription(ctx, company.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: company exists without a subscription", ErrDuplicateRegistration)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	result := &ProvisionResult{
		CompanyID:      company.ID.String(),
		CompanyCode:    company.CompanyCode,
		CompanyName:    company.Name,
		AdminEmail:     admin.Email,
		PlanName:       sub.PlanName,
		BillingCycle:   sub.BillingCycle,
		SubscriptionID: sub.ID.String(),
	}
	if granted, err := s.moduleRepo.ListCompanyModules(ctx, company.ID); err == nil {
		for _, g := range granted {
			if g.Module != nil {
				result.Modules = append(result.Modules, g.Module.Code)
			}
		}
	}
	return result, nil
}

func normalizeBillingCycle(cycle string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(cycle)) {
	case "", model.BillingCycleMonthly:
		return model.BillingCycleMonthly, nil
	case model.BillingCycleAnnual, "YEARLY":
		return model.BillingCycleAnnual, nil
	}
	return "", fmt.Errorf("%w: billing cycle must be MONTHLY or ANNUAL", ErrValidation)
}

// isDuplicate reports errors that mean the tenant already exists.
func isDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateRegistration)
}
