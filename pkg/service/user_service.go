package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
)

type UserUpdateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// UserService 管理端的用户台账，全部操作仅 admin 可用
type UserService struct {
	users repository.UserRepo
	log   *logrus.Logger
}

func NewUserService(users repository.UserRepo, log *logrus.Logger) *UserService {
	return &UserService{users: users, log: log}
}

func (s *UserService) List(ctx context.Context, actor auth.Actor) ([]*model.User, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Wrap(model.ErrForbidden, "admin only")
	}
	return s.users.ListUsers(ctx)
}

func (s *UserService) Get(ctx context.Context, actor auth.Actor, userID string) (*model.User, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Wrap(model.ErrForbidden, "admin only")
	}
	return s.users.GetUserByID(ctx, userID)
}

// Update 部分更新：空字段保留原值。改角色必须是合法枚举。
func (s *UserService) Update(ctx context.Context, actor auth.Actor, userID string, in UserUpdateInput) (*model.User, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Wrap(model.ErrForbidden, "admin only")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = defaultStr(in.Name, user.Name)
	user.Phone = defaultStr(in.Phone, user.Phone)
	if in.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(in.Email))
	}
	if in.Role != "" {
		role := model.Role(in.Role)
		if !role.Valid() {
			return nil, errors.Wrapf(model.ErrValidation, "unknown role %q", in.Role)
		}
		user.Role = role
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete 连带删除用户的地址簿。admin 不能删自己。
func (s *UserService) Delete(ctx context.Context, actor auth.Actor, userID string) error {
	if actor.Role != model.RoleAdmin {
		return errors.Wrap(model.ErrForbidden, "admin only")
	}
	if actor.ID == userID {
		return errors.Wrap(model.ErrValidation, "cannot delete your own account")
	}

	s.log.Warnf("[UserService] admin %s deleting user %s", actor.ID, userID)
	return s.users.DeleteUser(ctx, userID)
}
