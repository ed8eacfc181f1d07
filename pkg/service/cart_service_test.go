package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
)

func TestCartRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	seedCatalog(f)
	svc := NewCartService(cartRepo{f}, productRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	require.NoError(t, svc.Add(ctx, actor, "p1", 2))
	require.NoError(t, svc.Add(ctx, actor, "p2", 1))

	view, err := svc.Get(ctx, actor)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 30500.0, view.ItemsTotal)

	require.NoError(t, svc.SetQuantity(ctx, actor, "p1", 1))
	require.NoError(t, svc.Remove(ctx, actor, "p2"))
	view, _ = svc.Get(ctx, actor)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)

	require.NoError(t, svc.Clear(ctx, actor))
	view, _ = svc.Get(ctx, actor)
	assert.Empty(t, view.Items)
}

func TestCartRejectsUnknownProductAndBadQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	seedCatalog(f)
	svc := NewCartService(cartRepo{f}, productRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	assert.ErrorIs(t, svc.Add(ctx, actor, "ghost", 1), model.ErrNotFound)
	assert.ErrorIs(t, svc.Add(ctx, actor, "p1", 0), model.ErrValidation)
	assert.ErrorIs(t, svc.SetQuantity(ctx, actor, "p1", -1), model.ErrValidation)
}

func TestCartFlagsStockShortfall(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	seedCatalog(f)
	svc := NewCartService(cartRepo{f}, productRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	require.NoError(t, svc.Add(ctx, actor, "p2", 2))
	f.products["p2"].Stock = 1

	view, err := svc.Get(ctx, actor)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.False(t, view.Items[0].InStock)
}

func TestCartDropsInactiveProducts(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	seedCatalog(f)
	svc := NewCartService(cartRepo{f}, productRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	require.NoError(t, svc.Add(ctx, actor, "p1", 1))
	f.products["p1"].IsActive = false

	view, err := svc.Get(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	seedCatalog(f)
	svc := NewCartService(cartRepo{f}, productRepo{f}, testLogger())
	actor := auth.Actor{ID: "u1", Role: model.RoleCustomer}

	require.NoError(t, svc.Add(ctx, actor, "p1", 2))
	require.NoError(t, svc.SetQuantity(ctx, actor, "p1", 0))

	view, _ := svc.Get(ctx, actor)
	assert.Empty(t, view.Items)
}
