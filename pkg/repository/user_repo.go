package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/techimanshu8/flipkart/pkg/model"
)

type UserRepo interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, userID string) error

	ListAddresses(ctx context.Context, userID string) ([]*model.Address, error)
	GetAddress(ctx context.Context, userID, addressID string) (*model.Address, error)
	// AddAddress / SaveAddress：makeDefault 时先在同一事务里清掉兄弟地址的默认位
	AddAddress(ctx context.Context, addr *model.Address, makeDefault bool) error
	SaveAddress(ctx context.Context, addr *model.Address, makeDefault bool) error
	// DeleteAddress：删除的是默认地址且还有剩余时，提升最早创建的一条
	DeleteAddress(ctx context.Context, userID, addressID string) error
	SetDefaultAddress(ctx context.Context, userID, addressID string) error
}

type mysqlUserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &mysqlUserRepo{db: db}
}

func (r *mysqlUserRepo) CreateUser(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *mysqlUserRepo) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Preload("Addresses").Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(model.ErrNotFound, "user %s", userID)
		}
		return nil, err
	}
	return &user, nil
}

func (r *mysqlUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(model.ErrNotFound, "user")
		}
		return nil, err
	}
	return &user, nil
}

func (r *mysqlUserRepo) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

func (r *mysqlUserRepo) UpdateUser(ctx context.Context, user *model.User) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("user_id = ?", user.UserID).
		Updates(map[string]interface{}{
			"name":  user.Name,
			"email": user.Email,
			"phone": user.Phone,
			"role":  user.Role,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(model.ErrNotFound, "user %s", user.UserID)
	}
	return nil
}

func (r *mysqlUserRepo) DeleteUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Address{}).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ?", userID).Delete(&model.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(model.ErrNotFound, "user %s", userID)
		}
		return nil
	})
}

func (r *mysqlUserRepo) ListAddresses(ctx context.Context, userID string) ([]*model.Address, error) {
	var addrs []*model.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&addrs).Error
	return addrs, err
}

func (r *mysqlUserRepo) GetAddress(ctx context.Context, userID, addressID string) (*model.Address, error) {
	var addr model.Address
	err := r.db.WithContext(ctx).
		Where("address_id = ? AND user_id = ?", addressID, userID).
		First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(model.ErrNotFound, "address %s", addressID)
		}
		return nil, err
	}
	return &addr, nil
}

func (r *mysqlUserRepo) AddAddress(ctx context.Context, addr *model.Address, makeDefault bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if makeDefault {
			if err := clearDefault(tx, addr.UserID); err != nil {
				return err
			}
		}
		addr.IsDefault = makeDefault
		return tx.Create(addr).Error
	})
}

func (r *mysqlUserRepo) SaveAddress(ctx context.Context, addr *model.Address, makeDefault bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if makeDefault {
			if err := clearDefault(tx, addr.UserID); err != nil {
				return err
			}
			addr.IsDefault = true
		}
		// Select 全字段：部分合并在 service 层做，这里整行写回
		return tx.Model(&model.Address{}).
			Where("address_id = ? AND user_id = ?", addr.AddressID, addr.UserID).
			Select("name", "type", "street", "city", "state", "pincode", "phone", "is_default").
			Updates(addr).Error
	})
}

func (r *mysqlUserRepo) DeleteAddress(ctx context.Context, userID, addressID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var addr model.Address
		if err := tx.Where("address_id = ? AND user_id = ?", addressID, userID).First(&addr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(model.ErrNotFound, "address %s", addressID)
			}
			return err
		}

		if err := tx.Delete(&addr).Error; err != nil {
			return err
		}

		if !addr.IsDefault {
			return nil
		}

		// 默认地址被删：提升剩余地址里最早的一条
		var next model.Address
		err := tx.Where("user_id = ?", userID).Order("created_at ASC").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
}

func (r *mysqlUserRepo) SetDefaultAddress(ctx context.Context, userID, addressID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先确认归属，再清全部、设目标；目标已是默认时安全幂等
		var addr model.Address
		if err := tx.Where("address_id = ? AND user_id = ?", addressID, userID).First(&addr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(model.ErrNotFound, "address %s", addressID)
			}
			return err
		}
		if err := clearDefault(tx, userID); err != nil {
			return err
		}
		return tx.Model(&model.Address{}).
			Where("address_id = ?", addressID).
			Update("is_default", true).Error
	})
}

func clearDefault(tx *gorm.DB, userID string) error {
	return tx.Model(&model.Address{}).
		Where("user_id = ?", userID).
		Update("is_default", false).Error
}
