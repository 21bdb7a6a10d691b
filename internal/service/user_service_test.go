package service

import (
	"context"
	"testing"
	"time"

	"compugear/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newUserService(env *testEnv) UserService {
	return NewUserService(env.txManager, env.users, env.companies, env.audit, testSecret, time.Hour)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tn := env.provisionTenant(t, "acme", PlanBasic)
	users := newUserService(env)

	tok, err := users.Login(ctx, LoginUserRequest{Email: "ACME.admin@company.test", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "acme.admin@company.test", tok.User.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, time.Minute)

	claims, err := ParseToken(tok.Token, testSecret)
	require.NoError(t, err)
	rc, err := claims.RequestContext()
	require.NoError(t, err)
	assert.Equal(t, tn.admin.UserID, rc.UserID)
	assert.Equal(t, model.RoleCompanyAdmin, rc.RoleID)
	require.NotNil(t, rc.CompanyID)
	assert.Equal(t, tn.companyID, *rc.CompanyID)

	_, err = ParseToken(tok.Token, "other-secret")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = users.Login(ctx, LoginUserRequest{Email: "acme.admin@company.test", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = users.Login(ctx, LoginUserRequest{Email: "nobody@company.test", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestParseTokenRejectsExpiredAndNone(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		RoleID: model.RoleSalesStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "2b1f3c9e-6a41-4c55-9a3e-0f6f1d2f6b11",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = ParseToken(signed, testSecret)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, TokenClaims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(unsigned, testSecret)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenClaimsRequestContext(t *testing.T) {
	_, err := TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "nope"}}.RequestContext()
	assert.ErrorIs(t, err, ErrUnauthenticated)

	rc, err := TokenClaims{RoleID: model.RoleSuperAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "2b1f3c9e-6a41-4c55-9a3e-0f6f1d2f6b11"}}.RequestContext()
	require.NoError(t, err)
	assert.True(t, rc.IsSuperAdmin())
	assert.Nil(t, rc.CompanyID)
}

func TestCreateUserEnforcesSeatLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tn := env.provisionTenant(t, "acme", PlanBasic)
	users := newUserService(env)

	require.NoError(t, env.db.Model(&model.CompanySubscription{}).
		Where("company_id = ?", tn.companyID).Update("max_users", 2).Error)

	created, err := users.CreateUser(ctx, tn.admin, CreateUserRequest{
		FirstName: "Lito",
		LastName:  "Cruz",
		Email:     "Lito@Acme.test",
		Password:  "warehouse1",
		RoleID:    model.RoleInventoryStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, "lito@acme.test", created.Email)
	assert.Equal(t, "INVENTORY_STAFF", created.Role)
	require.NotNil(t, created.CompanyID)
	assert.Equal(t, tn.companyID, *created.CompanyID)

	_, err = users.CreateUser(ctx, tn.admin, CreateUserRequest{
		FirstName: "Maria",
		LastName:  "Santos",
		Email:     "maria@acme.test",
		Password:  "warehouse2",
		RoleID:    model.RoleSalesStaff,
	})
	assert.ErrorIs(t, err, ErrForbidden)

	list, total, err := users.ListUsers(ctx, tn.admin, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	var audits int64
	require.NoError(t, env.db.Model(&model.AuditLog{}).Where("action = ?", model.ActionCreateUser).Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tn := env.provisionTenant(t, "acme", PlanBasic)
	staff := env.addStaff(t, tn, model.RoleSalesStaff, "sales@acme.test")
	users := newUserService(env)

	valid := CreateUserRequest{FirstName: "Nina", LastName: "Lopez", Email: "new@acme.test", Password: "long-enough", RoleID: model.RoleSalesStaff}

	_, err := users.CreateUser(ctx, staff, valid)
	assert.ErrorIs(t, err, ErrForbidden)

	bad := valid
	bad.RoleID = model.RoleSuperAdmin
	_, err = users.CreateUser(ctx, tn.admin, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = valid
	bad.Email = "not-an-email"
	_, err = users.CreateUser(ctx, tn.admin, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = valid
	bad.Email = "Nina Lopez <new@acme.test>"
	_, err = users.CreateUser(ctx, tn.admin, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = valid
	bad.FirstName = "  "
	_, err = users.CreateUser(ctx, tn.admin, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = valid
	bad.Password = "short"
	_, err = users.CreateUser(ctx, tn.admin, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = valid
	bad.Email = "sales@acme.test"
	_, err = users.CreateUser(ctx, tn.admin, bad)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetMe(t *testing.T) {
	env := newTestEnv(t)
	tn := env.provisionTenant(t, "acme", PlanBasic)
	users := newUserService(env)

	me, err := users.GetMe(context.Background(), tn.admin)
	require.NoError(t, err)
	assert.Equal(t, tn.admin.UserID, me.ID)
	assert.Equal(t, "COMPANY_ADMIN", me.Role)

	_, err = users.GetMe(context.Background(), model.RequestContext{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
