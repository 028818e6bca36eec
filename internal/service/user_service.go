package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type RegisterUserRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	UserType    string `json:"user_type" binding:"omitempty,oneof=customer blogger employee"`
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name"`
	TaxNumber   string `json:"tax_number"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Phone       *string `json:"phone"`
	CompanyName *string `json:"company_name"`
	TaxNumber   *string `json:"tax_number"`
}

type ChangeRoleRequest struct {
	UserType   string `json:"user_type" binding:"required,oneof=customer blogger employee"`
	Department string `json:"department" binding:"omitempty,oneof=sales support technical admin procurement finance"`
	Role       string `json:"role"`
}

type TokenResponse struct {
	Token string        `json:"token"`
	User  WhoamiResponse `json:"user"`
}

// UserResponse returns a user without exposing sensitive data
type UserResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
	IsActive    bool   `json:"is_active"`
	UserType    string `json:"user_type,omitempty"`
	Department  string `json:"department,omitempty"`
	Role        string `json:"role,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// WhoamiResponse is the identity plus the resolved permission map, the payload
// frontends use to decide what to render.
type WhoamiResponse struct {
	ID          string            `json:"id"`
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	UserType    string            `json:"user_type,omitempty"`
	Role        string            `json:"role,omitempty"`
	Department  string            `json:"department,omitempty"`
	Permissions map[string]string `json:"permissions"`
}

type UserService interface {
	Register(ctx context.Context, req RegisterUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*TokenResponse, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	Whoami(ctx context.Context, user *model.User) (*WhoamiResponse, error)
	ListUsers(ctx context.Context, userType string, page, limit int) ([]UserResponse, int64, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*UserResponse, error)
	ChangeRole(ctx context.Context, id string, req ChangeRoleRequest, changedBy *model.User) (*UserResponse, error)
	Deactivate(ctx context.Context, id string, actor *model.User) error
}

type userService struct {
	repo     repository.UserRepository
	resolver *permission.Resolver
	notifier NotificationService
	log      *zap.SugaredLogger
}

func NewUserService(repo repository.UserRepository, resolver *permission.Resolver, notifier NotificationService, log *zap.SugaredLogger) UserService {
	return &userService{repo: repo, resolver: resolver, notifier: notifier, log: log}
}

func validEmployeeRole(role string) bool {
	switch role {
	case model.RoleBusinessOwner, model.RoleSystemAdmin, model.RoleSalesManager,
		model.RoleSalesRep, model.RoleProcurementOfficer, model.RoleAccounting:
		return true
	}
	return false
}

func mapUserToResponse(user *model.User) *UserResponse {
	resp := &UserResponse{
		ID:          user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		IsSuperuser: user.IsSuperuser,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	}
	if user.Profile != nil {
		resp.UserType = user.Profile.UserType
		resp.Department = user.Profile.Department
		resp.Role = user.Profile.Role
		resp.Phone = user.Profile.Phone
		resp.CompanyName = user.Profile.CompanyName
	}
	return resp
}

func (s *userService) Register(ctx context.Context, req RegisterUserRequest) (*UserResponse, error) {
	if _, err := s.repo.FindByUsername(ctx, req.Username); err == nil {
		return nil, policyErrorf("username already exists")
	}
	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, policyErrorf("email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userType := req.UserType
	if userType == "" {
		userType = model.UserTypeCustomer
	}
	// Self-registration never yields staff access: employees are promoted by
	// an admin through ChangeRole afterwards.
	if userType == model.UserTypeEmployee {
		userType = model.UserTypeCustomer
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashed),
		IsActive: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	profile := &model.UserProfile{
		UserID:      user.ID,
		UserType:    userType,
		Phone:       req.Phone,
		CompanyName: req.CompanyName,
		TaxNumber:   req.TaxNumber,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}
	user.Profile = profile

	s.notifier.Notify(ctx, user.ID, model.NotifyInfo, "Welcome",
		fmt.Sprintf("Welcome to the store, %s. Your account has been created.", user.Username), "/account")

	return mapUserToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*TokenResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		s.notifier.RecordSecurityEvent(ctx, nil, model.EventLoginFailed,
			fmt.Sprintf("Login failed for %s: unknown email", req.Email), ip, userAgent, nil)
		return nil, policyErrorf("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.notifier.RecordSecurityEvent(ctx, &user.ID, model.EventLoginFailed,
			"Login failed: wrong password", ip, userAgent, nil)
		return nil, policyErrorf("invalid email or password")
	}
	if !user.IsActive {
		s.notifier.RecordSecurityEvent(ctx, &user.ID, model.EventAccountLocked,
			"Login attempt on deactivated account", ip, userAgent, nil)
		return nil, policyErrorf("account is deactivated")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	// Same fallback strategy as the auth middleware.
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.notifier.RecordSecurityEvent(ctx, &user.ID, model.EventLoginSuccess, "Login successful", ip, userAgent, nil)

	whoami, err := s.Whoami(ctx, user)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: tokenString, User: *whoami}, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound("user")
	}
	return mapUserToResponse(user), nil
}

// Whoami resolves the caller's level for every application area in one pass.
func (s *userService) Whoami(ctx context.Context, user *model.User) (*WhoamiResponse, error) {
	perms := make(map[string]string, len(model.KnownApps))
	for _, app := range model.KnownApps {
		level, err := s.resolver.Resolve(ctx, user, app)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s access: %w", app, err)
		}
		perms[app] = level.String()
	}

	resp := &WhoamiResponse{
		ID:          user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		Permissions: perms,
	}
	if user.Profile != nil {
		resp.UserType = user.Profile.UserType
		resp.Role = user.Profile.Role
		resp.Department = user.Profile.Department
	}
	return resp, nil
}

func (s *userService) ListUsers(ctx context.Context, userType string, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	users, total, err := s.repo.List(ctx, userType, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapUserToResponse(&users[i]))
	}
	return responses, total, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound("user")
	}
	if user.Profile == nil {
		return nil, notFound("user profile")
	}

	if req.Phone != nil {
		user.Profile.Phone = *req.Phone
	}
	if req.CompanyName != nil {
		user.Profile.CompanyName = *req.CompanyName
	}
	if req.TaxNumber != nil {
		user.Profile.TaxNumber = *req.TaxNumber
	}
	if err := s.repo.UpdateProfile(ctx, user.Profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return mapUserToResponse(user), nil
}

// ChangeRole rewrites a user's business identity. The cached permission levels
// are invalidated before returning so the new role takes effect immediately.
func (s *userService) ChangeRole(ctx context.Context, id string, req ChangeRoleRequest, changedBy *model.User) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound("user")
	}
	if user.Profile == nil {
		return nil, notFound("user profile")
	}

	if req.UserType == model.UserTypeEmployee {
		if req.Role == "" || !validEmployeeRole(req.Role) {
			return nil, policyErrorf("employees require a valid role")
		}
	} else if req.Role != "" || req.Department != "" {
		return nil, policyErrorf("department and role only apply to employees")
	}

	oldType := user.Profile.UserType
	oldRole := user.Profile.Role
	user.Profile.UserType = req.UserType
	user.Profile.Department = req.Department
	user.Profile.Role = req.Role
	if err := s.repo.UpdateProfile(ctx, user.Profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.resolver.Invalidate(user.ID)

	s.notifier.RecordSecurityEvent(ctx, &user.ID, model.EventRoleChanged,
		fmt.Sprintf("Role changed by %s", changedBy.Username), "", "", map[string]interface{}{
			"old_type": oldType,
			"old_role": oldRole,
			"new_type": req.UserType,
			"new_role": req.Role,
		})
	s.notifier.Notify(ctx, user.ID, model.NotifyInfo, "Your access has changed",
		"Your account role was updated. Sign in again if anything looks out of date.", "/account")

	return mapUserToResponse(user), nil
}

func (s *userService) Deactivate(ctx context.Context, id string, actor *model.User) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	if userID == actor.ID {
		return policyErrorf("you cannot deactivate your own account")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return notFound("user")
	}
	user.IsActive = false
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.resolver.Invalidate(user.ID)
	s.notifier.RecordSecurityEvent(ctx, &user.ID, model.EventAccountLocked,
		fmt.Sprintf("Account deactivated by %s", actor.Username), "", "", nil)
	return nil
}
