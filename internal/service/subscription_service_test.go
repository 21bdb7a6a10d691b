package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"compugear/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLookupPlan(t *testing.T) {
	basic, ok := LookupPlan(" basic ")
	require.True(t, ok)
	assert.Equal(t, PlanBasic, basic.Name)
	assert.True(t, decimal.NewFromInt(2499).Equal(basic.MonthlyFee))
	assert.True(t, decimal.NewFromInt(24990).Equal(basic.AnnualFee))
	assert.Equal(t, 50, basic.MaxUsers)

	pro, ok := LookupPlan("PRO")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(4999).Equal(pro.Amount(model.BillingCycleMonthly)))
	assert.True(t, decimal.NewFromInt(49990).Equal(pro.Amount(model.BillingCycleAnnual)))
	assert.Equal(t, 200, pro.MaxUsers)
	assert.ElementsMatch(t, model.ManagedModules, pro.Modules)

	_, ok = LookupPlan("Enterprise")
	assert.False(t, ok)
}

func TestResolveModules(t *testing.T) {
	pro, _ := LookupPlan(PlanPro)
	basic, _ := LookupPlan(PlanBasic)

	assert.Equal(t, []string{model.ModuleSales, model.ModuleBilling}, ResolveModules(pro, []string{"billing", " sales "}))
	assert.Equal(t, []string{model.ModuleSales}, ResolveModules(basic, []string{"SALES", "BILLING"}))
	assert.Equal(t, basic.Modules, ResolveModules(basic, nil))
	assert.Equal(t, basic.Modules, ResolveModules(basic, []string{"SUPPORT"}))
}

func TestBuildRoleModuleMatrix(t *testing.T) {
	companyID := uuid.New()
	rows := BuildRoleModuleMatrix(companyID, []string{model.ModuleSales, model.ModuleInventory})
	require.Len(t, rows, len(model.ManagedRoles)*len(model.ManagedModules))

	granted := map[int][]string{}
	for _, r := range rows {
		assert.Equal(t, companyID, r.CompanyID)
		if r.HasAccess {
			granted[r.RoleID] = append(granted[r.RoleID], r.ModuleCode)
		}
	}
	assert.ElementsMatch(t, []string{model.ModuleSales, model.ModuleInventory}, granted[model.RoleCompanyAdmin])
	assert.Equal(t, []string{model.ModuleSales}, granted[model.RoleSalesStaff])
	assert.Equal(t, []string{model.ModuleInventory}, granted[model.RoleInventoryStaff])
	assert.Empty(t, granted[model.RoleBillingStaff])
	assert.Empty(t, granted[model.RoleMarketingStaff])
	assert.Empty(t, granted[model.RoleSupportStaff])
}

func TestSubscribeBasic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.subs.Subscribe(ctx, subscribeRequest("acme", "basic"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^CG-\d{8}-\d{4}$`), res.CompanyCode)
	assert.Equal(t, PlanBasic, res.PlanName)
	assert.Equal(t, model.BillingCycleMonthly, res.BillingCycle)
	assert.Equal(t, []string{model.ModuleSales, model.ModuleInventory}, res.Modules)
	assert.Equal(t, "acme.admin@company.test", res.AdminEmail)

	companyID := uuid.MustParse(res.CompanyID)
	sub, err := env.companies.ActiveSubscription(ctx, companyID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2499).Equal(sub.MonthlyFee))
	assert.True(t, sub.AmountPaid.IsZero())
	assert.Equal(t, 50, sub.MaxUsers)
	assert.WithinDuration(t, sub.StartDate.AddDate(0, 1, 0), sub.EndDate, 2*time.Hour)

	admin, err := env.users.GetByEmail(ctx, "acme.admin@company.test")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCompanyAdmin, admin.RoleID)
	require.NotNil(t, admin.CompanyID)
	assert.Equal(t, companyID, *admin.CompanyID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("s3cret-pass")))

	granted, err := env.modules.ListCompanyModules(ctx, companyID)
	require.NoError(t, err)
	codes := make([]string, 0, len(granted))
	for _, g := range granted {
		assert.True(t, g.IsEnabled)
		codes = append(codes, g.Module.Code)
	}
	assert.ElementsMatch(t, []string{model.ModuleSales, model.ModuleInventory}, codes)

	rules, err := env.modules.ListRoleAccess(ctx, companyID)
	require.NoError(t, err)
	assert.Len(t, rules, len(model.ManagedRoles)*len(model.ManagedModules))

	var usage int64
	require.NoError(t, env.db.Model(&model.PlatformUsageLog{}).
		Where("company_id = ? AND action = ?", companyID, model.UsageSubscriptionCreated).
		Count(&usage).Error)
	assert.Equal(t, int64(1), usage)
}

func TestSubscribeAnnualPro(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := subscribeRequest("globex", PlanPro)
	req.BillingCycle = "annual"
	req.Modules = []string{"billing", "support"}
	res, err := env.subs.Subscribe(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.BillingCycleAnnual, res.BillingCycle)
	assert.Equal(t, []string{model.ModuleBilling, model.ModuleSupport}, res.Modules)

	sub, err := env.companies.ActiveSubscription(ctx, uuid.MustParse(res.CompanyID))
	require.NoError(t, err)
	assert.Equal(t, 200, sub.MaxUsers)
	assert.WithinDuration(t, sub.StartDate.AddDate(1, 0, 0), sub.EndDate, 2*time.Hour)
}

func TestSubscribeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := map[string]func(*SubscribeRequest){
		"missing company name": func(r *SubscribeRequest) { r.CompanyName = " " },
		"bad company email":    func(r *SubscribeRequest) { r.CompanyEmail = "not-an-email" },
		"missing phone":        func(r *SubscribeRequest) { r.CompanyPhone = "" },
		"missing admin name":   func(r *SubscribeRequest) { r.AdminLastName = "" },
		"bad admin email":      func(r *SubscribeRequest) { r.AdminEmail = "owner@" },
		"short password":       func(r *SubscribeRequest) { r.AdminPassword = "short" },
		"unknown plan":         func(r *SubscribeRequest) { r.PlanName = "Enterprise" },
		"unknown cycle":        func(r *SubscribeRequest) { r.BillingCycle = "WEEKLY" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := subscribeRequest("acme", PlanBasic)
			mutate(&req)
			_, err := env.subs.Subscribe(ctx, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	var companies int64
	require.NoError(t, env.db.Model(&model.Company{}).Count(&companies).Error)
	assert.Zero(t, companies)
}

func TestSubscribeRejectsDisplayNameAddresses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for name, mutate := range map[string]func(*SubscribeRequest){
		"company display name": func(r *SubscribeRequest) { r.CompanyEmail = "Acme Sales <acme@company.test>" },
		"admin comment":        func(r *SubscribeRequest) { r.AdminEmail = "boss (ceo) <acme.admin@company.test>" },
		"admin angle brackets": func(r *SubscribeRequest) { r.AdminEmail = "<acme.admin@company.test>" },
	} {
		req := subscribeRequest("acme", PlanBasic)
		mutate(&req)
		_, err := env.subs.Subscribe(ctx, req)
		assert.ErrorIs(t, err, ErrValidation, name)
		_, err = env.subs.Validate(ctx, req)
		assert.ErrorIs(t, err, ErrValidation, name)
	}

	req := subscribeRequest("acme", PlanBasic)
	req.CompanyEmail = "  ACME@Company.test "
	res, err := env.subs.Subscribe(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "acme.admin@company.test", res.AdminEmail)

	var company model.Company
	require.NoError(t, env.db.First(&company).Error)
	assert.Equal(t, "acme@company.test", company.Email)

	_, err = env.subs.Subscribe(ctx, subscribeRequest("acme", PlanBasic))
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
}

func TestSubscribeDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.subs.Subscribe(ctx, subscribeRequest("acme", PlanBasic))
	require.NoError(t, err)

	_, err = env.subs.Subscribe(ctx, subscribeRequest("acme", PlanPro))
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	req := subscribeRequest("other", PlanBasic)
	req.AdminEmail = "ACME.admin@company.test"
	_, err = env.subs.Subscribe(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	req = subscribeRequest("third", PlanBasic)
	req.AdminEmail = "acme@company.test"
	_, err = env.subs.Subscribe(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	var companies int64
	require.NoError(t, env.db.Model(&model.Company{}).Count(&companies).Error)
	assert.Equal(t, int64(1), companies)
}

func TestProvisionIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prep, err := env.subs.Validate(ctx, subscribeRequest("acme", PlanBasic))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.subs.Provision(ctx, prep, ProvisionOptions{EntryPoint: EntryPointDirect})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateRegistration)
	}
	assert.Equal(t, 1, succeeded)

	var users, subs, access int64
	require.NoError(t, env.db.Model(&model.User{}).Count(&users).Error)
	require.NoError(t, env.db.Model(&model.CompanySubscription{}).Count(&subs).Error)
	require.NoError(t, env.db.Model(&model.CompanyModuleAccess{}).Count(&access).Error)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), subs)
	assert.Equal(t, int64(2), access)
}

func TestExistingRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	existing, err := env.subs.ExistingRegistration(ctx, "acme@company.test", "acme.admin@company.test")
	require.NoError(t, err)
	assert.Nil(t, existing)

	res, err := env.subs.Subscribe(ctx, subscribeRequest("acme", PlanBasic))
	require.NoError(t, err)

	existing, err = env.subs.ExistingRegistration(ctx, "ACME@company.test", "acme.admin@company.test")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, res.CompanyID, existing.CompanyID)
	assert.Equal(t, PlanBasic, existing.PlanName)
	assert.ElementsMatch(t, res.Modules, existing.Modules)

	_, err = env.subs.ExistingRegistration(ctx, "acme@company.test", "someone.else@company.test")
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
}

func TestPlansAndModules(t *testing.T) {
	env := newTestEnv(t)

	plans := env.subs.Plans()
	require.Len(t, plans, 2)
	plans[0].Name = "mutated"
	assert.Equal(t, PlanBasic, env.subs.Plans()[0].Name)

	modules, err := env.subs.Modules(context.Background())
	require.NoError(t, err)
	assert.Len(t, modules, len(model.ManagedModules))
}
