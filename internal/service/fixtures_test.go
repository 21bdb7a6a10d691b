package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"compugear/internal/database"
	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPusher struct {
	mu       sync.Mutex
	messages map[uuid.UUID][][]byte
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{messages: make(map[uuid.UUID][][]byte)}
}

func (p *recordingPusher) SendToUser(userID uuid.UUID, message []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[userID] = append(p.messages[userID], message)
}

func (p *recordingPusher) count(userID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[userID])
}

type testEnv struct {
	db *gorm.DB

	txManager     repository.TransactionManager
	users         repository.UserRepository
	companies     repository.CompanyRepository
	modules       repository.ModuleRepository
	products      repository.ProductRepository
	invTx         repository.InventoryTxRepository
	orders        repository.OrderRepository
	payments      repository.PaymentRepository
	invoices      repository.InvoiceRepository
	approvalRepo  repository.ApprovalRepository
	notifications repository.NotificationRepository
	auditRepo     repository.AuditRepository

	pusher   *recordingPusher
	audit    AuditService
	access   ModuleAccessService
	notifier NotificationService
	subs     SubscriptionService
	approval ApprovalService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	log := zap.NewNop()

	env := &testEnv{
		db:            db,
		txManager:     repository.NewTransactionManager(db),
		users:         repository.NewUserRepository(db),
		companies:     repository.NewCompanyRepository(db),
		modules:       repository.NewModuleRepository(db),
		products:      repository.NewProductRepository(db),
		invTx:         repository.NewInventoryTxRepository(db),
		orders:        repository.NewOrderRepository(db),
		payments:      repository.NewPaymentRepository(db),
		invoices:      repository.NewInvoiceRepository(db),
		approvalRepo:  repository.NewApprovalRepository(db),
		notifications: repository.NewNotificationRepository(db),
		auditRepo:     repository.NewAuditRepository(db),
		pusher:        newRecordingPusher(),
	}

	env.audit = NewAuditService(env.auditRepo)
	env.access = NewModuleAccessService(env.modules, env.txManager, env.audit, 0)
	env.notifier = NewNotificationService(env.notifications, env.users, env.pusher, log)
	env.subs = NewSubscriptionService(env.txManager, env.companies, env.users, env.modules, log)
	dispatcher := NewDispatcher(env.products, env.invTx, env.orders, env.payments, env.invoices)
	env.approval = NewApprovalService(env.txManager, env.approvalRepo, dispatcher, env.access, env.notifier, env.audit, log)

	roles := NewRoleService(env.txManager, repository.NewRoleRepository(db), env.modules, env.users, log)
	require.NoError(t, roles.SeedDefaults(context.Background(), SuperAdminSeed{}))
	return env
}

type tenant struct {
	companyID uuid.UUID
	admin     model.RequestContext
}

func subscribeRequest(prefix, plan string) SubscribeRequest {
	return SubscribeRequest{
		CompanyName:    strings.ToUpper(prefix[:1]) + prefix[1:] + " Computers",
		CompanyEmail:   prefix + "@company.test",
		CompanyPhone:   "+63 2 8123 4567",
		CompanyAddress: "Makati City",
		Industry:       "Retail",
		AdminFirstName: "Ana",
		AdminLastName:  "Reyes",
		AdminEmail:     prefix + ".admin@company.test",
		AdminPhone:     "+63 917 000 0000",
		AdminPassword:  "s3cret-pass",
		PlanName:       plan,
		BillingCycle:   model.BillingCycleMonthly,
	}
}

func (env *testEnv) provisionTenant(t *testing.T, prefix, plan string) tenant {
	t.Helper()
	ctx := context.Background()

	res, err := env.subs.Subscribe(ctx, subscribeRequest(prefix, plan))
	require.NoError(t, err)

	admin, err := env.users.GetByEmail(ctx, prefix+".admin@company.test")
	require.NoError(t, err)

	companyID := uuid.MustParse(res.CompanyID)
	return tenant{
		companyID: companyID,
		admin:     model.RequestContext{UserID: admin.ID, RoleID: model.RoleCompanyAdmin, CompanyID: &companyID},
	}
}

func (env *testEnv) addStaff(t *testing.T, tn tenant, roleID int, email string) model.RequestContext {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("staff-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	companyID := tn.companyID
	user := model.User{
		CompanyID: &companyID,
		RoleID:    roleID,
		FirstName: "Staff",
		LastName:  fmt.Sprintf("R%d", roleID),
		Username:  email,
		Email:     email,
		Password:  string(hash),
		IsActive:  true,
	}
	require.NoError(t, env.users.Create(context.Background(), &user))
	return model.RequestContext{UserID: user.ID, RoleID: roleID, CompanyID: &companyID}
}

func (env *testEnv) addProduct(t *testing.T, tn tenant, sku string, stock int) model.Product {
	t.Helper()

	companyID := tn.companyID
	product := model.Product{
		CompanyID:     &companyID,
		SKU:           sku,
		Name:          "Product " + sku,
		Price:         decimal.NewFromInt(1500),
		StockQuantity: stock,
	}
	require.NoError(t, env.products.Create(context.Background(), &product))
	return product
}

func (env *testEnv) notificationCount(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(&model.Notification{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func (env *testEnv) addSuperAdmin(t *testing.T) model.RequestContext {
	t.Helper()

	user := model.User{
		RoleID:    model.RoleSuperAdmin,
		FirstName: "Platform",
		LastName:  "Operator",
		Username:  "root@compugear.test",
		Email:     "root@compugear.test",
		Password:  "unused",
		IsActive:  true,
	}
	require.NoError(t, env.users.Create(context.Background(), &user))
	return model.RequestContext{UserID: user.ID, RoleID: model.RoleSuperAdmin}
}
