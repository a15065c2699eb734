package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/model"
	"github.com/addwise/addwise-hub/internal/utils"
)

// UserService manages accounts: self registration, login and the user and
// admin screens of the dashboard.
type UserService struct {
	users      UserStore
	tokens     TokenStore
	bcryptCost int
	log        *zap.Logger
	now        func() time.Time
}

// NewUserService wires a UserService.  A nil logger is replaced by a no-op.
func NewUserService(users UserStore, tokens TokenStore, bcryptCost int, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{users: users, tokens: tokens, bcryptCost: bcryptCost, log: log, now: time.Now}
}

// NewUserInput carries the fields of a new account.  Role defaults to user.
type NewUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// EditUserInput is a partial account update; nil fields are left alone.
type EditUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
}

func (s *UserService) create(ctx context.Context, in NewUserInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = model.NormalizeEmail(in.Email)
	in.Role = model.NormalizeRole(in.Role)
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if in.Name == "" || in.Email == "" || in.Password == "" || !model.ValidRole(in.Role) {
		return nil, ErrInvalidInput
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Register creates an account with role user.  Any requested role is
// ignored.
func (s *UserService) Register(ctx context.Context, in NewUserInput) (*model.User, error) {
	in.Role = model.RoleUser
	return s.create(ctx, in)
}

// Authenticate verifies email and password.  Unknown email and wrong
// password both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.users.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns the account with id.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListUsers returns every account with role user.
func (s *UserService) ListUsers(ctx context.Context, p authz.Principal) ([]*model.User, error) {
	if err := authz.RequireRole(p, model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return nil, err
	}
	return s.users.ListByRole(ctx, model.RoleUser)
}

// ListAdmins returns every account with role admin.
func (s *UserService) ListAdmins(ctx context.Context, p authz.Principal) ([]*model.User, error) {
	if err := authz.RequireRole(p, model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return nil, err
	}
	return s.users.ListByRole(ctx, model.RoleAdmin)
}

// Create adds an account on behalf of an admin.  Only a superadmin may
// create anything other than a plain user.
func (s *UserService) Create(ctx context.Context, p authz.Principal, in NewUserInput) (*model.User, error) {
	if err := authz.RequireRole(p, model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return nil, err
	}
	role := model.NormalizeRole(in.Role)
	if role != "" && role != model.RoleUser {
		if err := authz.RequireSuperAdmin(p); err != nil {
			return nil, err
		}
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.String("actor", p.UserID), zap.String("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

// CreateAdmin adds an account with role admin.  Superadmin only.
func (s *UserService) CreateAdmin(ctx context.Context, p authz.Principal, in NewUserInput) (*model.User, error) {
	if err := authz.RequireSuperAdmin(p); err != nil {
		return nil, err
	}
	in.Role = model.RoleAdmin
	return s.Create(ctx, p, in)
}

// Update edits an account.  Admins may edit plain users only; changing
// roles or editing privileged accounts needs a superadmin.
func (s *UserService) Update(ctx context.Context, p authz.Principal, id string, in EditUserInput) (*model.User, error) {
	if err := authz.RequireRole(p, model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleUser {
		if err := authz.RequireSuperAdmin(p); err != nil {
			return nil, err
		}
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		u.Name = name
	}
	if in.Email != nil {
		email := model.NormalizeEmail(*in.Email)
		if email == "" {
			return nil, ErrInvalidInput
		}
		u.Email = email
	}
	if in.Role != nil {
		role := model.NormalizeRole(*in.Role)
		if !model.ValidRole(role) {
			return nil, ErrInvalidInput
		}
		if role != u.Role {
			if err := authz.RequireSuperAdmin(p); err != nil {
				return nil, err
			}
		}
		u.Role = role
	}
	if in.Password != nil {
		if *in.Password == "" {
			return nil, ErrInvalidInput
		}
		hash, err := utils.HashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a plain user account.  Their codes stay in the registry,
// unassigned.
func (s *UserService) Delete(ctx context.Context, p authz.Principal, id string) error {
	return s.deleteWithRole(ctx, p, id, model.RoleUser)
}

// DeleteAdmin removes an admin account.  Superadmin only; ids of non-admin
// accounts are reported as ErrNotFound.
func (s *UserService) DeleteAdmin(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.RequireSuperAdmin(p); err != nil {
		return err
	}
	return s.deleteWithRole(ctx, p, id, model.RoleAdmin)
}

func (s *UserService) deleteWithRole(ctx context.Context, p authz.Principal, id, role string) error {
	if err := authz.RequireRole(p, model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role != role {
		return ErrNotFound
	}
	if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("actor", p.UserID), zap.String("user_id", id), zap.String("role", role))
	return nil
}

// EnsureSuperAdmin creates the superadmin account when no account with
// email exists.  It returns true when an account was created.
func (s *UserService) EnsureSuperAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, ErrInvalidInput
	}
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Super Admin"
	}
	u, err := s.create(ctx, NewUserInput{Name: name, Email: email, Password: password, Role: model.RoleSuperAdmin})
	if err != nil {
		return false, err
	}
	s.log.Info("superadmin bootstrapped", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return true, nil
}
