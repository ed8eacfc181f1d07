package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
)

func seedUsers(f *fakeStore) {
	f.users["u1"] = &model.User{UserID: "u1", Name: "Asha", Email: "asha@example.com", Role: model.RoleCustomer}
	f.users["s1"] = &model.User{UserID: "s1", Name: "Ravi", Email: "ravi@example.com", Role: model.RoleSeller}
	f.users["a1"] = &model.User{UserID: "a1", Name: "Root", Email: "root@example.com", Role: model.RoleAdmin}
}

func TestUserListAndGet(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	seedUsers(f)
	svc := NewUserService(userRepo{f}, testLogger())

	admin := auth.Actor{ID: "a1", Role: model.RoleAdmin}
	users, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	got, err := svc.Get(ctx, admin, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)

	// 非 admin 一律拒绝
	customer := auth.Actor{ID: "u1", Role: model.RoleCustomer}
	_, err = svc.List(ctx, customer)
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, err = svc.Get(ctx, customer, "u1")
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestUserUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	seedUsers(f)
	svc := NewUserService(userRepo{f}, testLogger())
	admin := auth.Actor{ID: "a1", Role: model.RoleAdmin}

	// 部分更新：空字段保留原值，邮箱归一化
	got, err := svc.Update(ctx, admin, "u1", UserUpdateInput{Email: " Asha.New@Example.COM ", Role: string(model.RoleSeller)})
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, "asha.new@example.com", got.Email)
	assert.Equal(t, model.RoleSeller, got.Role)

	_, err = svc.Update(ctx, admin, "u1", UserUpdateInput{Role: "superuser"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Update(ctx, admin, "missing", UserUpdateInput{Name: "X"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	seller := auth.Actor{ID: "s1", Role: model.RoleSeller}
	_, err = svc.Update(ctx, seller, "u1", UserUpdateInput{Name: "X"})
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestUserDelete(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	seedUsers(f)
	svc := NewUserService(userRepo{f}, testLogger())
	admin := auth.Actor{ID: "a1", Role: model.RoleAdmin}

	require.NoError(t, svc.Delete(ctx, admin, "u1"))
	assert.NotContains(t, f.users, "u1")

	// admin 不能删掉自己
	err := svc.Delete(ctx, admin, "a1")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, f.users, "a1")

	customer := auth.Actor{ID: "s1", Role: model.RoleSeller}
	assert.ErrorIs(t, svc.Delete(ctx, customer, "s1"), model.ErrForbidden)
}
