package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"compugear/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingNotificationRepo struct{}

func (failingNotificationRepo) Create(context.Context, *model.Notification) error {
	return errors.New("disk full")
}

func (failingNotificationRepo) ListByUser(context.Context, uuid.UUID, int, int) ([]model.Notification, int64, error) {
	return nil, 0, nil
}

func (failingNotificationRepo) CountUnread(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (failingNotificationRepo) MarkRead(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func TestNotifyUserPersistsAndPushes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tn := env.provisionTenant(t, "acme", PlanBasic)

	env.notifier.NotifyUser(ctx, tn.admin.UserID, Notice{Title: "Hello", Message: "World", Link: "/x"})

	items, total, err := env.notifier.ListMine(ctx, tn.admin, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, model.NotificationInfo, items[0].Type)
	assert.False(t, items[0].IsRead)

	require.Equal(t, 1, env.pusher.count(tn.admin.UserID))
	var pushed struct {
		Event string               `json:"event"`
		Data  NotificationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.pusher.messages[tn.admin.UserID][0], &pushed))
	assert.Equal(t, "notification", pushed.Event)
	assert.Equal(t, items[0].ID, pushed.Data.ID)

	unread, err := env.notifier.UnreadCount(ctx, tn.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, env.notifier.MarkRead(ctx, tn.admin, items[0].ID))
	unread, err = env.notifier.UnreadCount(ctx, tn.admin)
	require.NoError(t, err)
	assert.Zero(t, unread)

	other := env.addStaff(t, tn, model.RoleSalesStaff, "sales@acme.test")
	assert.ErrorIs(t, env.notifier.MarkRead(ctx, other, items[0].ID), ErrNotFound)
	assert.ErrorIs(t, env.notifier.MarkRead(ctx, other, "nope"), ErrValidation)
}

func TestNotifyAdminsReachesCompanyAndPlatformAdmins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.provisionTenant(t, "acme", PlanBasic)
	globex := env.provisionTenant(t, "globex", PlanBasic)
	superAdmin := env.addSuperAdmin(t)
	staff := env.addStaff(t, acme, model.RoleSalesStaff, "sales@acme.test")

	env.notifier.NotifyAdmins(ctx, &acme.companyID, Notice{Title: "Pending"})

	assert.Equal(t, int64(1), env.notificationCount(t, acme.admin.UserID))
	assert.Equal(t, int64(1), env.notificationCount(t, superAdmin.UserID))
	assert.Zero(t, env.notificationCount(t, globex.admin.UserID))
	assert.Zero(t, env.notificationCount(t, staff.UserID))
}

func TestNotifyFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	pusher := newRecordingPusher()
	notifier := NewNotificationService(failingNotificationRepo{}, env.users, pusher, zap.NewNop())

	userID := uuid.New()
	assert.NotPanics(t, func() {
		notifier.NotifyUser(context.Background(), userID, Notice{Title: "lost"})
	})
	assert.Zero(t, pusher.count(userID))
}

func TestAuditLogsAreTenantScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.provisionTenant(t, "acme", PlanBasic)
	globex := env.provisionTenant(t, "globex", PlanBasic)

	require.NoError(t, env.audit.Record(ctx, AuditEntry{CompanyID: &acme.companyID, UserID: &acme.admin.UserID, Action: "TEST_A"}))
	require.NoError(t, env.audit.Record(ctx, AuditEntry{CompanyID: &globex.companyID, Action: "TEST_B", Details: map[string]interface{}{"k": 1}}))

	logs, total, err := env.audit.GetAuditLogs(ctx, acme.admin, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "TEST_A", logs[0].Action)
	assert.Equal(t, "acme.admin@company.test", logs[0].Username)
	assert.Equal(t, "{}", logs[0].Details)

	superAdmin := env.addSuperAdmin(t)
	logs, total, err = env.audit.GetAuditLogs(ctx, superAdmin, "TEST_B", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "System", logs[0].Username)
	assert.JSONEq(t, `{"k":1}`, logs[0].Details)

	staff := env.addStaff(t, acme, model.RoleSalesStaff, "sales@acme.test")
	_, _, err = env.audit.GetAuditLogs(ctx, staff, "", 1, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}
