package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"compugear/internal/model"
	"compugear/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
	Password  string `json:"password" validate:"required,min=8"`
	RoleID    int    `json:"role_id" validate:"required"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID *uuid.UUID `json:"company_id"`
	RoleID    int        `json:"role_id"`
	Role      string     `json:"role"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	IsActive  bool       `json:"is_active"`
	CreatedAt string     `json:"created_at"`
}

// TokenClaims are the claims carried by an access token.
type TokenClaims struct {
	RoleID    int    `json:"role_id"`
	CompanyID string `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// RequestContext rebuilds the caller identity from verified claims.
func (c TokenClaims) RequestContext() (model.RequestContext, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return model.RequestContext{}, fmt.Errorf("%w: invalid token subject", ErrUnauthenticated)
	}
	rc := model.RequestContext{UserID: userID, RoleID: c.RoleID}
	if c.CompanyID != "" {
		companyID, err := uuid.Parse(c.CompanyID)
		if err != nil {
			return model.RequestContext{}, fmt.Errorf("%w: invalid token company", ErrUnauthenticated)
		}
		rc.CompanyID = &companyID
	}
	return rc, nil
}

// ParseToken verifies an HS256 access token and returns its claims.
func ParseToken(tokenString, secret string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
	}
	return claims, nil
}

// UserService defines the interface for business logic related to User
type UserService interface {
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetMe(ctx context.Context, rc model.RequestContext) (*UserResponse, error)
	CreateUser(ctx context.Context, rc model.RequestContext, req CreateUserRequest) (*UserResponse, error)
	ListUsers(ctx context.Context, rc model.RequestContext, page, limit int) ([]UserResponse, int64, error)
}

type userService struct {
	txManager   repository.TransactionManager
	repo        repository.UserRepository
	companyRepo repository.CompanyRepository
	audit       AuditService
	secret      string
	ttl         time.Duration
	now         func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(
	txManager repository.TransactionManager,
	repo repository.UserRepository,
	companyRepo repository.CompanyRepository,
	audit AuditService,
	secret string,
	ttl time.Duration,
) UserService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &userService{
		txManager:   txManager,
		repo:        repo,
		companyRepo: companyRepo,
		audit:       audit,
		secret:      secret,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:        user.ID,
		CompanyID: user.CompanyID,
		RoleID:    user.RoleID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
		Email:     user.Email,
		Phone:     user.Phone,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.Role != nil {
		res.Role = user.Role.Name
	}
	return res
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", ErrForbidden)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := TokenClaims{
		RoleID: user.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if user.CompanyID != nil {
		claims.CompanyID = user.CompanyID.String()
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &TokenResponse{Token: tokenString, ExpiresAt: expiresAt, User: mapToResponse(user)}, nil
}

func (s *userService) GetMe(ctx context.Context, rc model.RequestContext) (*UserResponse, error) {
	if !rc.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	user, err := s.repo.GetByID(ctx, rc.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}
	return mapToResponse(user), nil
}

// CreateUser adds a staff account to the caller's company within the plan's seat limit.
func (s *userService) CreateUser(ctx context.Context, rc model.RequestContext, req CreateUserRequest) (*UserResponse, error) {
	if !rc.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if rc.RoleID != model.RoleCompanyAdmin || rc.CompanyID == nil {
		return nil, fmt.Errorf("%w: only company admins can create users", ErrForbidden)
	}
	if !model.IsManagedRole(req.RoleID) {
		return nil, fmt.Errorf("%w: role %d cannot be assigned", ErrValidation, req.RoleID)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	normalized := req
	normalized.FirstName = strings.TrimSpace(req.FirstName)
	normalized.LastName = strings.TrimSpace(req.LastName)
	normalized.Email = email
	if err := validateStruct(normalized); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	companyID := *rc.CompanyID
	user := &model.User{
		CompanyID: &companyID,
		RoleID:    req.RoleID,
		FirstName: normalized.FirstName,
		LastName:  normalized.LastName,
		Username:  email,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Password:  string(hashedPassword),
		IsActive:  true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.repo.EmailExists(txCtx, email)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: email already exists", ErrValidation)
		}

		sub, err := s.companyRepo.ActiveSubscription(txCtx, companyID)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: company has no active subscription", ErrForbidden)
			}
			return err
		}
		count, err := s.repo.CountByCompany(txCtx, companyID)
		if err != nil {
			return err
		}
		if count >= int64(sub.MaxUsers) {
			return fmt.Errorf("%w: user limit of %d reached for the %s plan", ErrForbidden, sub.MaxUsers, sub.PlanName)
		}

		if err := s.repo.Create(txCtx, user); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%w: email already exists", ErrValidation)
			}
			return err
		}

		return s.audit.Record(txCtx, AuditEntry{
			CompanyID:  &companyID,
			UserID:     &rc.UserID,
			Action:     model.ActionCreateUser,
			EntityID:   user.ID.String(),
			EntityName: "users",
			Details:    map[string]interface{}{"email": email, "role_id": req.RoleID},
		})
	})
	if err != nil {
		return nil, err
	}

	created, err := s.repo.GetByID(ctx, user.ID)
	if err != nil {
		return mapToResponse(user), nil
	}
	return mapToResponse(created), nil
}

func (s *userService) ListUsers(ctx context.Context, rc model.RequestContext, page, limit int) ([]UserResponse, int64, error) {
	if !rc.IsAuthenticated() {
		return nil, 0, ErrUnauthenticated
	}
	if !rc.IsAdmin() {
		return nil, 0, fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	if rc.CompanyID == nil {
		return []UserResponse{}, 0, nil
	}
	page, limit = normalizePage(page, limit)

	users, total, err := s.repo.ListByCompany(ctx, *rc.CompanyID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}
