package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
)

type AgentRegisterInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Phone         string `json:"phone"`
	VehicleType   string `json:"vehicle_type"`
	VehicleNumber string `json:"vehicle_number"`
	LicenseNumber string `json:"license_number"`
	AadharNumber  string `json:"aadhar_number"`
	Area          string `json:"area"`
}

type DeliveryService struct {
	agents   repository.AgentRepo
	orders   repository.OrderRepo
	notifier Notifier
	log      *logrus.Logger
}

func NewDeliveryService(
	agents repository.AgentRepo,
	orders repository.OrderRepo,
	notifier Notifier,
	log *logrus.Logger,
) *DeliveryService {
	return &DeliveryService{
		agents:   agents,
		orders:   orders,
		notifier: notifier,
		log:      log,
	}
}

// Register 创建 delivery 角色用户和骑手档案（同一事务），
// 待 admin 核验 (is_verified) 后才可被指派。
func (s *DeliveryService) Register(ctx context.Context, in AgentRegisterInput) (*model.DeliveryAgent, error) {
	switch {
	case in.Name == "" || in.Email == "" || in.Phone == "":
		return nil, errors.Wrap(model.ErrValidation, "name, email and phone are required")
	case len(in.Password) < 6:
		return nil, errors.Wrap(model.ErrValidation, "password must be at least 6 characters")
	case !model.ValidVehicleType(in.VehicleType):
		return nil, errors.Wrapf(model.ErrValidation, "unknown vehicle type %q", in.VehicleType)
	case in.VehicleNumber == "" || in.LicenseNumber == "" || in.AadharNumber == "" || in.Area == "":
		return nil, errors.Wrap(model.ErrValidation, "vehicle, license, aadhar and area are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		UserID:   uuid.New().String(),
		Name:     in.Name,
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: string(hashed),
		Phone:    in.Phone,
		Role:     model.RoleDelivery,
	}
	agent := &model.DeliveryAgent{
		AgentID:       uuid.New().String(),
		UserID:        user.UserID,
		VehicleType:   in.VehicleType,
		VehicleNumber: in.VehicleNumber,
		LicenseNumber: in.LicenseNumber,
		AadharNumber:  in.AadharNumber,
		Area:          in.Area,
		IsAvailable:   true,
	}

	if err := s.agents.CreateWithUser(ctx, user, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// StartDelivery 已指派骑手取件：shipped -> out_for_delivery。
// 这是 OTP 开始生效的交接点。
func (s *DeliveryService) StartDelivery(ctx context.Context, actor auth.Actor, orderID string) (*model.Order, error) {
	agent, order, err := s.assignedAgentOrder(ctx, actor, auth.ActionDeliveryStart, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusShipped {
		return nil, errors.Wrapf(model.ErrInvalidTransition, "cannot start delivery for order in status %s", order.Status)
	}

	matched, err := s.orders.Transition(ctx, &repository.StatusPatch{
		OrderID: orderID,
		From:    []model.OrderStatus{model.OrderStatusShipped},
		To:      model.OrderStatusOutForDelivery,
		Audit: &model.StatusAudit{
			OrderID:    orderID,
			ActorID:    agent.UserID,
			ActorRole:  string(model.RoleDelivery),
			FromStatus: order.Status,
			ToStatus:   model.OrderStatusOutForDelivery,
		},
	})
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrap(model.ErrInvalidTransition, "order is no longer shipped")
	}
	return s.orders.GetByID(ctx, orderID)
}

// GenerateOTP 前置条件：订单已是 out_for_delivery。
// 写入放 WHERE status=... 的条件更新里，旧码被整体覆盖并重置计数。
// 返回值只对卖家/管理员可见：码走客户通道，骑手只拿到回执，
// 否则骑手自取自验，签收凭证就形同虚设。
func (s *DeliveryService) GenerateOTP(ctx context.Context, actor auth.Actor, orderID string) (string, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}

	capActor := actor
	if actor.Role == model.RoleDelivery {
		agent, err := s.agents.GetByUserID(ctx, actor.ID)
		if err != nil {
			return "", err
		}
		capActor = auth.Actor{ID: agent.AgentID, Role: model.RoleDelivery}
	}
	if err := auth.Can(capActor, auth.ActionDeliveryOTP, auth.RefForOrder(order)); err != nil {
		return "", err
	}
	if order.Status != model.OrderStatusOutForDelivery {
		return "", errors.Wrap(model.ErrInvalidTransition, "order is not ready for delivery")
	}

	code := model.NewDeliveryOTP()
	matched, err := s.orders.SetOTP(ctx, orderID, code, time.Now().Add(model.OTPTTL))
	if err != nil {
		return "", err
	}
	if !matched {
		return "", errors.Wrap(model.ErrInvalidTransition, "order is not ready for delivery")
	}

	// 码发给客户，由客户当面告知骑手
	s.notifier.Notify(ctx, model.OrderEvent{
		Type:        model.EventOTPGenerated,
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		RecipientID: order.UserID,
		Data:        map[string]string{"otp": code},
	})

	if actor.Role == model.RoleDelivery {
		return "", nil
	}
	return code, nil
}

// Complete 核对 OTP 后签收。比对本身在条件更新里做，
// 并发重复提交最多一个成功。失败路径：过期 / 锁定 / 不匹配，
// 不匹配会记一条 failed 投递记录并累加计数。
func (s *DeliveryService) Complete(ctx context.Context, actor auth.Actor, orderID, code string) (*model.Order, error) {
	agent, order, err := s.assignedAgentOrder(ctx, actor, auth.ActionDeliveryFinish, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusOutForDelivery {
		return nil, errors.Wrapf(model.ErrInvalidTransition, "cannot complete order in status %s", order.Status)
	}
	if order.DeliveryOTP == "" {
		return nil, errors.Wrap(model.ErrInvalidOTP, "no OTP issued for this order")
	}
	if order.DeliveryOTPAttempts >= model.OTPMaxAttempts {
		return nil, model.ErrOTPLocked
	}
	if order.DeliveryOTPExpiry == nil || time.Now().After(*order.DeliveryOTPExpiry) {
		return nil, model.ErrOTPExpired
	}

	now := time.Now()
	matched, err := s.orders.CompleteDelivery(ctx, orderID, code, agent.AgentID, now,
		&model.DeliveryAttempt{
			OrderID:     orderID,
			AttemptedAt: now,
			Status:      model.AttemptSuccess,
			Notes:       "Delivery completed successfully",
		},
		&model.StatusAudit{
			OrderID:    orderID,
			ActorID:    agent.UserID,
			ActorRole:  string(model.RoleDelivery),
			FromStatus: order.Status,
			ToStatus:   model.OrderStatusDelivered,
		})
	if err != nil {
		return nil, err
	}
	if !matched {
		// 条件更新落空有两种原因：状态被并发改掉，或码不匹配。
		// 只有后者计入尝试次数。
		cur, rerr := s.orders.GetByID(ctx, orderID)
		if rerr != nil {
			return nil, rerr
		}
		if cur.Status != model.OrderStatusOutForDelivery {
			return nil, errors.Wrapf(model.ErrInvalidTransition, "order moved to status %s", cur.Status)
		}
		if ferr := s.orders.RecordOTPFailure(ctx, orderID, &model.DeliveryAttempt{
			OrderID:     orderID,
			AttemptedAt: now,
			Status:      model.AttemptFailed,
			Notes:       "OTP mismatch",
		}); ferr != nil {
			s.log.Errorf("[DeliveryService] failed to record OTP failure for order %s: %v", orderID, ferr)
		}
		return nil, model.ErrInvalidOTP
	}

	s.notifier.Notify(ctx, model.OrderEvent{
		Type:        model.EventOrderDelivered,
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		RecipientID: order.UserID,
	})
	return s.orders.GetByID(ctx, orderID)
}

// Orders 骑手工作台：待取件 (shipped) + 在途 (out_for_delivery)
func (s *DeliveryService) Orders(ctx context.Context, actor auth.Actor) ([]*model.Order, error) {
	agent, err := s.requireAgent(ctx, actor)
	if err != nil {
		return nil, err
	}

	pickup, err := s.orders.ListForAgent(ctx, agent.AgentID, model.OrderStatusShipped)
	if err != nil {
		return nil, err
	}
	active, err := s.orders.ListForAgent(ctx, agent.AgentID, model.OrderStatusOutForDelivery)
	if err != nil {
		return nil, err
	}
	return append(pickup, active...), nil
}

func (s *DeliveryService) SetAvailability(ctx context.Context, actor auth.Actor, available bool) error {
	agent, err := s.requireAgent(ctx, actor)
	if err != nil {
		return err
	}
	return s.agents.SetAvailability(ctx, agent.AgentID, available)
}

func (s *DeliveryService) UpdateLocation(ctx context.Context, actor auth.Actor, lat, lng float64) error {
	agent, err := s.requireAgent(ctx, actor)
	if err != nil {
		return err
	}
	return s.agents.UpdateLocation(ctx, agent.AgentID, lat, lng)
}

func (s *DeliveryService) ListAvailable(ctx context.Context) ([]*model.DeliveryAgent, error) {
	return s.agents.ListAvailable(ctx)
}

// Rate 客户给已签收订单的骑手打分，平均分在仓储事务里重算
func (s *DeliveryService) Rate(ctx context.Context, actor auth.Actor, orderID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return errors.Wrap(model.ErrValidation, "rating must be between 1 and 5")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != actor.ID {
		return errors.Wrap(model.ErrForbidden, "not your order")
	}
	if order.Status != model.OrderStatusDelivered {
		return errors.Wrap(model.ErrInvalidTransition, "order is not delivered yet")
	}
	if order.DeliveryAgentID == "" {
		return errors.Wrap(model.ErrValidation, "order has no delivery agent")
	}

	return s.agents.AddRating(ctx, &model.AgentRating{
		AgentID: order.DeliveryAgentID,
		OrderID: orderID,
		Rating:  rating,
		Comment: comment,
	})
}

func (s *DeliveryService) Verify(ctx context.Context, actor auth.Actor, agentID string, verified bool) error {
	if actor.Role != model.RoleAdmin {
		return errors.Wrap(model.ErrForbidden, "admin only")
	}
	return s.agents.SetVerified(ctx, agentID, verified)
}

func (s *DeliveryService) requireAgent(ctx context.Context, actor auth.Actor) (*model.DeliveryAgent, error) {
	if actor.Role != model.RoleDelivery {
		return nil, errors.Wrap(model.ErrForbidden, "delivery only")
	}
	return s.agents.GetByUserID(ctx, actor.ID)
}

func (s *DeliveryService) assignedAgentOrder(ctx context.Context, actor auth.Actor, action auth.Action, orderID string) (*model.DeliveryAgent, *model.Order, error) {
	agent, err := s.requireAgent(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	capActor := auth.Actor{ID: agent.AgentID, Role: model.RoleDelivery}
	if err := auth.Can(capActor, action, auth.RefForOrder(order)); err != nil {
		return nil, nil, err
	}
	return agent, order, nil
}
