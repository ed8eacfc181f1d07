package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/techimanshu8/flipkart/pkg/model"
)

type AgentRepo interface {
	// CreateWithUser 注册：用户账号和骑手档案同一事务落库
	CreateWithUser(ctx context.Context, user *model.User, agent *model.DeliveryAgent) error
	GetByID(ctx context.Context, agentID string) (*model.DeliveryAgent, error)
	GetByUserID(ctx context.Context, userID string) (*model.DeliveryAgent, error)
	ListAvailable(ctx context.Context) ([]*model.DeliveryAgent, error)
	SetAvailability(ctx context.Context, agentID string, available bool) error
	UpdateLocation(ctx context.Context, agentID string, lat, lng float64) error
	// AddRating 追加评分并在同一事务里重算平均分
	AddRating(ctx context.Context, rating *model.AgentRating) error
	SetVerified(ctx context.Context, agentID string, verified bool) error
}

type mysqlAgentRepo struct {
	db *gorm.DB
}

func NewAgentRepo(db *gorm.DB) AgentRepo {
	return &mysqlAgentRepo{db: db}
}

func (r *mysqlAgentRepo) CreateWithUser(ctx context.Context, user *model.User, agent *model.DeliveryAgent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(agent).Error
	})
}

func (r *mysqlAgentRepo) GetByID(ctx context.Context, agentID string) (*model.DeliveryAgent, error) {
	var agent model.DeliveryAgent
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(model.ErrNotFound, "agent %s", agentID)
		}
		return nil, err
	}
	return &agent, nil
}

func (r *mysqlAgentRepo) GetByUserID(ctx context.Context, userID string) (*model.DeliveryAgent, error) {
	var agent model.DeliveryAgent
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(model.ErrNotFound, "delivery agent")
		}
		return nil, err
	}
	return &agent, nil
}

func (r *mysqlAgentRepo) ListAvailable(ctx context.Context) ([]*model.DeliveryAgent, error) {
	var agents []*model.DeliveryAgent
	err := r.db.WithContext(ctx).
		Where("is_verified = ? AND is_available = ?", true, true).
		Find(&agents).Error
	return agents, err
}

func (r *mysqlAgentRepo) SetAvailability(ctx context.Context, agentID string, available bool) error {
	return r.db.WithContext(ctx).Model(&model.DeliveryAgent{}).
		Where("agent_id = ?", agentID).
		Update("is_available", available).Error
}

func (r *mysqlAgentRepo) UpdateLocation(ctx context.Context, agentID string, lat, lng float64) error {
	return r.db.WithContext(ctx).Model(&model.DeliveryAgent{}).
		Where("agent_id = ?", agentID).
		Updates(map[string]interface{}{"latitude": lat, "longitude": lng}).Error
}

func (r *mysqlAgentRepo) AddRating(ctx context.Context, rating *model.AgentRating) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rating).Error; err != nil {
			return err
		}
		// 平均分直接用 SQL 聚合重算，不读回全部评分
		return tx.Model(&model.DeliveryAgent{}).
			Where("agent_id = ?", rating.AgentID).
			Update("average_rating", tx.Model(&model.AgentRating{}).
				Select("AVG(rating)").
				Where("agent_id = ?", rating.AgentID),
			).Error
	})
}

func (r *mysqlAgentRepo) SetVerified(ctx context.Context, agentID string, verified bool) error {
	res := r.db.WithContext(ctx).Model(&model.DeliveryAgent{}).
		Where("agent_id = ?", agentID).
		Update("is_verified", verified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(model.ErrNotFound, "agent %s", agentID)
	}
	return nil
}
