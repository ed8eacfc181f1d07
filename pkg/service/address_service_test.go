package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
)

func validAddress() AddressInput {
	return AddressInput{
		Name: "Ravi", Street: "12 MG Road", City: "Bangalore",
		State: "Karnataka", Pincode: "560001", Phone: "9999999999",
	}
}

func defaultCount(addrs []*model.Address) int {
	n := 0
	for _, a := range addrs {
		if a.IsDefault {
			n++
		}
	}
	return n
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	svc := NewAddressService(userRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	first, err := svc.Add(ctx, actor, validAddress())
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := svc.Add(ctx, actor, validAddress())
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	addrs, _ := svc.List(ctx, actor)
	assert.Equal(t, 1, defaultCount(addrs))
}

func TestAddDefaultDisplacesPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	svc := NewAddressService(userRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	first, err := svc.Add(ctx, actor, validAddress())
	require.NoError(t, err)

	in := validAddress()
	in.IsDefault = true
	second, err := svc.Add(ctx, actor, in)
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	addrs, _ := svc.List(ctx, actor)
	assert.Equal(t, 1, defaultCount(addrs))
	assert.False(t, f.addrs[first.AddressID].IsDefault)
}

func TestDeleteDefaultPromotesRemaining(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	svc := NewAddressService(userRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	first, _ := svc.Add(ctx, actor, validAddress())
	second, _ := svc.Add(ctx, actor, validAddress())
	require.True(t, f.addrs[first.AddressID].IsDefault)

	require.NoError(t, svc.Delete(ctx, actor, first.AddressID))

	addrs, _ := svc.List(ctx, actor)
	require.Len(t, addrs, 1)
	assert.True(t, addrs[0].IsDefault, "remaining address promoted to default")
	assert.Equal(t, second.AddressID, addrs[0].AddressID)
}

func TestSetDefaultIsExclusive(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	svc := NewAddressService(userRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	first, _ := svc.Add(ctx, actor, validAddress())
	second, _ := svc.Add(ctx, actor, validAddress())

	require.NoError(t, svc.SetDefault(ctx, actor, second.AddressID))
	addrs, _ := svc.List(ctx, actor)
	assert.Equal(t, 1, defaultCount(addrs))
	assert.False(t, f.addrs[first.AddressID].IsDefault)

	// 对已是默认的地址重复设置是 no-op
	require.NoError(t, svc.SetDefault(ctx, actor, second.AddressID))
	addrs, _ = svc.List(ctx, actor)
	assert.Equal(t, 1, defaultCount(addrs))
	assert.True(t, f.addrs[second.AddressID].IsDefault)

	// 不属于自己的地址不能设默认
	other := auth.Actor{ID: "u2", Role: model.RoleCustomer}
	assert.ErrorIs(t, svc.SetDefault(ctx, other, second.AddressID), model.ErrNotFound)
}

func TestAddressValidation(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	svc := NewAddressService(userRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	in := validAddress()
	in.Pincode = ""
	_, err := svc.Add(ctx, actor, in)
	assert.ErrorIs(t, err, model.ErrValidation)

	in = validAddress()
	in.Type = "igloo"
	_, err = svc.Add(ctx, actor, in)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestUpdateAddressPartialMerge(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	svc := NewAddressService(userRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	addr, _ := svc.Add(ctx, actor, validAddress())

	updated, err := svc.Update(ctx, actor, addr.AddressID, AddressInput{City: "Mysore"})
	require.NoError(t, err)
	assert.Equal(t, "Mysore", updated.City)
	assert.Equal(t, "12 MG Road", updated.Street, "unset fields keep their value")
	assert.True(t, updated.IsDefault, "update does not drop default status")
}
