package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
)

type AddressInput struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"is_default"`
}

type AddressService struct {
	users repository.UserRepo
	log   *logrus.Logger
}

func NewAddressService(users repository.UserRepo, log *logrus.Logger) *AddressService {
	return &AddressService{users: users, log: log}
}

func (s *AddressService) List(ctx context.Context, actor auth.Actor) ([]*model.Address, error) {
	return s.users.ListAddresses(ctx, actor.ID)
}

// Add 地址簿里的第一条地址自动成为默认
func (s *AddressService) Add(ctx context.Context, actor auth.Actor, in AddressInput) (*model.Address, error) {
	if err := validateAddress(in); err != nil {
		return nil, err
	}

	existing, err := s.users.ListAddresses(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	addr := &model.Address{
		AddressID: uuid.New().String(),
		UserID:    actor.ID,
		Name:      in.Name,
		Type:      defaultStr(in.Type, model.AddressTypeHome),
		Street:    in.Street,
		City:      in.City,
		State:     in.State,
		Pincode:   in.Pincode,
		Phone:     in.Phone,
	}
	makeDefault := in.IsDefault || len(existing) == 0
	if err := s.users.AddAddress(ctx, addr, makeDefault); err != nil {
		return nil, err
	}
	addr.IsDefault = makeDefault
	return addr, nil
}

// Update 部分更新：空字段保留原值。设默认走同一事务的清位逻辑。
func (s *AddressService) Update(ctx context.Context, actor auth.Actor, addressID string, in AddressInput) (*model.Address, error) {
	addr, err := s.users.GetAddress(ctx, actor.ID, addressID)
	if err != nil {
		return nil, err
	}

	addr.Name = defaultStr(in.Name, addr.Name)
	addr.Type = defaultStr(in.Type, addr.Type)
	addr.Street = defaultStr(in.Street, addr.Street)
	addr.City = defaultStr(in.City, addr.City)
	addr.State = defaultStr(in.State, addr.State)
	addr.Pincode = defaultStr(in.Pincode, addr.Pincode)
	addr.Phone = defaultStr(in.Phone, addr.Phone)

	makeDefault := addr.IsDefault || in.IsDefault
	if err := s.users.SaveAddress(ctx, addr, makeDefault); err != nil {
		return nil, err
	}
	addr.IsDefault = makeDefault
	return addr, nil
}

// Delete 删掉默认地址后仓储层会提升最早的一条，保持单默认不变量
func (s *AddressService) Delete(ctx context.Context, actor auth.Actor, addressID string) error {
	return s.users.DeleteAddress(ctx, actor.ID, addressID)
}

func (s *AddressService) SetDefault(ctx context.Context, actor auth.Actor, addressID string) error {
	return s.users.SetDefaultAddress(ctx, actor.ID, addressID)
}

func validateAddress(in AddressInput) error {
	if in.Name == "" || in.Street == "" || in.City == "" || in.State == "" || in.Pincode == "" || in.Phone == "" {
		return errors.Wrap(model.ErrValidation, "name, street, city, state, pincode and phone are required")
	}
	if t := in.Type; t != "" && t != model.AddressTypeHome && t != model.AddressTypeWork && t != model.AddressTypeOther {
		return errors.Wrapf(model.ErrValidation, "unknown address type %q", t)
	}
	return nil
}
