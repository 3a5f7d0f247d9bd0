package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mirmex/helpdesk/internal/auth"
	"github.com/mirmex/helpdesk/internal/domain"
	"github.com/mirmex/helpdesk/internal/policy"
	"github.com/mirmex/helpdesk/internal/repository"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

// UserService covers administrative directory management.
type UserService struct {
	users    repository.UserRepository
	resolver *auth.RoleResolver
}

// UserUpdateInput describes the mutable directory fields. Nil fields are
// left untouched.
type UserUpdateInput struct {
	Email       *string
	Groups      *[]string
	IsSuperuser *bool
	Active      *bool
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, resolver *auth.RoleResolver) *UserService {
	return &UserService{users: users, resolver: resolver}
}

// List returns directory accounts, admin only.
func (s *UserService) List(ctx context.Context, role domain.Role, limit, offset int) ([]domain.User, error) {
	if err := policy.Authorize(role, policy.Ownership{}, policy.ActionManageUsers); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ListTechnicians returns accounts in the technician group. Dispatchers use
// this to pick an assignee, so it rides the assign capability.
func (s *UserService) ListTechnicians(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if err := policy.Authorize(role, policy.Ownership{}, policy.ActionAssign); err != nil {
		return nil, err
	}
	users, err := s.users.ListByGroup(ctx, domain.GroupTechnician)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Update mutates group membership and account flags, admin only. The role
// cache for the target actor is invalidated so the new role takes effect on
// their next request.
func (s *UserService) Update(ctx context.Context, role domain.Role, userID string, input UserUpdateInput) (*domain.User, error) {
	if err := policy.Authorize(role, policy.Ownership{}, policy.ActionManageUsers); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}

	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.Groups != nil {
		user.Groups = *input.Groups
	}
	if input.IsSuperuser != nil {
		user.IsSuperuser = *input.IsSuperuser
	}
	if input.Active != nil {
		user.Active = *input.Active
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.resolver != nil {
		s.resolver.Invalidate(ctx, user.ID)
	}
	return user, nil
}
