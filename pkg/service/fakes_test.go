package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/repository"
)

// fakeStore 内存版仓储，镜像 MySQL 实现的条件更新语义，
// service 层测试全部跑在它上面。
type fakeStore struct {
	mu sync.Mutex

	products map[string]*model.Product
	orders   map[string]*model.Order
	audits   []*model.StatusAudit
	agents   map[string]*model.DeliveryAgent
	ratings  []*model.AgentRating
	users    map[string]*model.User
	addrs    map[string]*model.Address
	carts    map[string]map[string]int

	invalidated []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[string]*model.Product),
		orders:   make(map[string]*model.Order),
		agents:   make(map[string]*model.DeliveryAgent),
		users:    make(map[string]*model.User),
		addrs:    make(map[string]*model.Address),
		carts:    make(map[string]map[string]int),
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

// ---- OrderRepo ----

func (f *fakeStore) Create(_ context.Context, order *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, it := range order.Items {
		p, ok := f.products[it.ProductID]
		if !ok || !p.IsActive || p.Stock < it.Quantity {
			return errors.Wrapf(model.ErrInsufficientStock, "product %s", it.ProductID)
		}
	}
	for _, it := range order.Items {
		f.products[it.ProductID].Stock -= it.Quantity
	}

	f.orders[order.OrderID] = order
	f.audits = append(f.audits, &model.StatusAudit{
		OrderID:   order.OrderID,
		ActorID:   order.UserID,
		ActorRole: string(model.RoleCustomer),
		ToStatus:  model.OrderStatusPending,
	})
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, orderID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "order %s", orderID)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context, offset, limit int) ([]*model.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Order
	for _, o := range f.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (f *fakeStore) ListBySeller(_ context.Context, sellerID string, offset, limit int) ([]*model.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Order
	for _, o := range f.orders {
		for _, it := range o.Items {
			if it.SellerID == sellerID {
				out = append(out, o)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (f *fakeStore) Transition(_ context.Context, p *repository.StatusPatch) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[p.OrderID]
	if !ok {
		return false, nil
	}
	if len(p.From) > 0 && !statusIn(o.Status, p.From) {
		return false, nil
	}
	o.Status = p.To
	f.applyFields(o, p.Fields)
	if p.Audit != nil {
		f.audits = append(f.audits, p.Audit)
	}
	return true, nil
}

func (f *fakeStore) CancelRestocking(_ context.Context, p *repository.StatusPatch, restock []model.OrderItem) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[p.OrderID]
	if !ok || !statusIn(o.Status, p.From) {
		return false, nil
	}
	o.Status = model.OrderStatusCancelled
	f.applyFields(o, p.Fields)
	for _, it := range restock {
		if prod, ok := f.products[it.ProductID]; ok {
			prod.Stock += it.Quantity
		}
	}
	if p.Audit != nil {
		f.audits = append(f.audits, p.Audit)
	}
	return true, nil
}

func (f *fakeStore) AssignAgent(_ context.Context, orderID, agentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != model.OrderStatusShipped {
		return false, nil
	}
	o.DeliveryAgentID = agentID
	if a, ok := f.agents[agentID]; ok {
		a.ActiveOrderID = orderID
	}
	return true, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, orderID, userID, paymentRef string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID || o.IsPaid {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentStatus = model.PaymentStatusCompleted
	o.PaymentRef = paymentRef
	return true, nil
}

func (f *fakeStore) SetOTP(_ context.Context, orderID, code string, expiry time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != model.OrderStatusOutForDelivery {
		return false, nil
	}
	o.DeliveryOTP = code
	o.DeliveryOTPExpiry = &expiry
	o.DeliveryOTPAttempts = 0
	return true, nil
}

func (f *fakeStore) RecordOTPFailure(_ context.Context, orderID string, attempt *model.DeliveryAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "order %s", orderID)
	}
	o.DeliveryOTPAttempts++
	o.Attempts = append(o.Attempts, *attempt)
	return nil
}

func (f *fakeStore) CompleteDelivery(_ context.Context, orderID, code, agentID string, now time.Time,
	attempt *model.DeliveryAttempt, audit *model.StatusAudit) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != model.OrderStatusOutForDelivery || o.DeliveryOTP == "" || o.DeliveryOTP != code {
		return false, nil
	}
	o.Status = model.OrderStatusDelivered
	o.DeliveredAt = &now
	o.DeliveryOTP = ""
	o.DeliveryOTPExpiry = nil
	o.Attempts = append(o.Attempts, *attempt)
	if a, ok := f.agents[agentID]; ok {
		a.TotalDeliveries++
		a.ActiveOrderID = ""
	}
	f.audits = append(f.audits, audit)
	return true, nil
}

func (f *fakeStore) CountBySeller(_ context.Context, sellerID string) (int64, error) {
	orders, _, err := f.ListBySeller(context.Background(), sellerID, 0, 1<<30)
	return int64(len(orders)), err
}

func (f *fakeStore) RevenueBySeller(_ context.Context, sellerID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var revenue float64
	for _, o := range f.orders {
		if o.Status == model.OrderStatusCancelled {
			continue
		}
		for _, it := range o.Items {
			if it.SellerID == sellerID {
				revenue += it.Price * float64(it.Quantity)
			}
		}
	}
	return revenue, nil
}

func (f *fakeStore) ListAudit(_ context.Context, orderID string) ([]*model.StatusAudit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.StatusAudit
	for _, a := range f.audits {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListForAgent(_ context.Context, agentID string, status model.OrderStatus) ([]*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Order
	for _, o := range f.orders {
		if o.DeliveryAgentID == agentID && o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) applyFields(o *model.Order, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "tracking_number":
			o.TrackingNumber, _ = v.(string)
		case "notes":
			o.Notes, _ = v.(string)
		case "delivered_at":
			if t, ok := v.(time.Time); ok {
				o.DeliveredAt = &t
			}
		case "delivery_otp":
			o.DeliveryOTP, _ = v.(string)
		case "delivery_otp_expiry":
			o.DeliveryOTPExpiry = nil
		}
	}
}

func statusIn(s model.OrderStatus, in []model.OrderStatus) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}

// ---- ProductRepo ----

func (f *fakeStore) CreateProduct(p *model.Product) { f.products[p.ProductID] = p }

func (f *fakeStore) Update(_ context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ProductID]; !ok {
		return errors.Wrapf(model.ErrNotFound, "product %s", p.ProductID)
	}
	f.products[p.ProductID] = p
	return nil
}

func (f *fakeStore) Delete(_ context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[productID]; !ok {
		return errors.Wrapf(model.ErrNotFound, "product %s", productID)
	}
	delete(f.products, productID)
	return nil
}

func (f *fakeStore) GetByIDs(_ context.Context, ids []string) ([]*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) List(_ context.Context, offset, limit int) ([]*model.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) LowStock(_ context.Context, sellerID string, threshold int) ([]*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Product
	for _, p := range f.products {
		if p.SellerID == sellerID && p.Stock < threshold {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Invalidate(_ context.Context, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, ids...)
}

// productRepo 把 fakeStore 适配成 ProductRepo（Create/GetByID
// 与 OrderRepo/UserRepo 的同名方法签名冲突，单独包一层）
type productRepo struct {
	*fakeStore
}

func (r productRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ProductID] = p
	return nil
}

func (r productRepo) GetByID(_ context.Context, productID string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "product %s", productID)
	}
	return p, nil
}

func (r productRepo) ListBySeller(_ context.Context, sellerID string, offset, limit int) ([]*model.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Product
	for _, p := range r.products {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

// ---- AgentRepo ----

type agentRepo struct {
	*fakeStore
}

func (r agentRepo) CreateWithUser(_ context.Context, user *model.User, agent *model.DeliveryAgent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
	r.agents[agent.AgentID] = agent
	return nil
}

func (r agentRepo) GetByID(_ context.Context, agentID string) (*model.DeliveryAgent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "delivery agent %s", agentID)
	}
	return a, nil
}

func (r agentRepo) GetByUserID(_ context.Context, userID string) (*model.DeliveryAgent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.UserID == userID {
			return a, nil
		}
	}
	return nil, errors.Wrap(model.ErrNotFound, "delivery agent profile")
}

func (r agentRepo) ListAvailable(_ context.Context) ([]*model.DeliveryAgent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.DeliveryAgent
	for _, a := range r.agents {
		if a.IsVerified && a.IsAvailable {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r agentRepo) SetAvailability(_ context.Context, agentID string, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "delivery agent %s", agentID)
	}
	a.IsAvailable = available
	return nil
}

func (r agentRepo) UpdateLocation(_ context.Context, agentID string, lat, lng float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "delivery agent %s", agentID)
	}
	a.Latitude, a.Longitude = lat, lng
	return nil
}

func (r agentRepo) AddRating(_ context.Context, rating *model.AgentRating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[rating.AgentID]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "delivery agent %s", rating.AgentID)
	}
	r.ratings = append(r.ratings, rating)
	var sum, n float64
	for _, rr := range r.ratings {
		if rr.AgentID == rating.AgentID {
			sum += float64(rr.Rating)
			n++
		}
	}
	a.AverageRating = sum / n
	return nil
}

func (r agentRepo) SetVerified(_ context.Context, agentID string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "delivery agent %s", agentID)
	}
	a.IsVerified = verified
	return nil
}

// ---- UserRepo ----

type userRepo struct {
	*fakeStore
}

func (r userRepo) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
	return nil
}

func (r userRepo) GetUserByID(_ context.Context, userID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "user %s", userID)
	}
	return u, nil
}

func (r userRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.Wrap(model.ErrNotFound, "user")
}

func (r userRepo) ListUsers(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r userRepo) UpdateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
	return nil
}

func (r userRepo) DeleteUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
	return nil
}

func (r userRepo) ListAddresses(_ context.Context, userID string) ([]*model.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addressesOf(userID), nil
}

func (r userRepo) addressesOf(userID string) []*model.Address {
	var out []*model.Address
	for _, a := range r.addrs {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r userRepo) GetAddress(_ context.Context, userID, addressID string) (*model.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addrs[addressID]
	if !ok || a.UserID != userID {
		return nil, errors.Wrapf(model.ErrNotFound, "address %s", addressID)
	}
	return a, nil
}

func (r userRepo) AddAddress(_ context.Context, addr *model.Address, makeDefault bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if makeDefault {
		r.clearDefault(addr.UserID)
		addr.IsDefault = true
	}
	if addr.CreatedAt.IsZero() {
		addr.CreatedAt = time.Now()
	}
	r.addrs[addr.AddressID] = addr
	return nil
}

func (r userRepo) SaveAddress(_ context.Context, addr *model.Address, makeDefault bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.addrs[addr.AddressID]; !ok {
		return errors.Wrapf(model.ErrNotFound, "address %s", addr.AddressID)
	}
	if makeDefault {
		r.clearDefault(addr.UserID)
		addr.IsDefault = true
	}
	r.addrs[addr.AddressID] = addr
	return nil
}

func (r userRepo) DeleteAddress(_ context.Context, userID, addressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addrs[addressID]
	if !ok || a.UserID != userID {
		return errors.Wrapf(model.ErrNotFound, "address %s", addressID)
	}
	wasDefault := a.IsDefault
	delete(r.addrs, addressID)
	if wasDefault {
		if rest := r.addressesOf(userID); len(rest) > 0 {
			rest[0].IsDefault = true
		}
	}
	return nil
}

func (r userRepo) SetDefaultAddress(_ context.Context, userID, addressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addrs[addressID]
	if !ok || a.UserID != userID {
		return errors.Wrapf(model.ErrNotFound, "address %s", addressID)
	}
	r.clearDefault(userID)
	a.IsDefault = true
	return nil
}

func (r userRepo) clearDefault(userID string) {
	for _, a := range r.addrs {
		if a.UserID == userID {
			a.IsDefault = false
		}
	}
}

// ---- CartRepo ----

type cartRepo struct {
	*fakeStore
}

func (r cartRepo) AddItem(_ context.Context, userID, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.carts[userID] == nil {
		r.carts[userID] = make(map[string]int)
	}
	r.carts[userID][productID] += quantity
	return nil
}

func (r cartRepo) SetQuantity(_ context.Context, userID, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.carts[userID] == nil {
		r.carts[userID] = make(map[string]int)
	}
	r.carts[userID][productID] = quantity
	return nil
}

func (r cartRepo) RemoveItem(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts[userID], productID)
	return nil
}

func (r cartRepo) GetItems(_ context.Context, userID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.carts[userID]))
	for id, q := range r.carts[userID] {
		out[id] = q
	}
	return out, nil
}

func (r cartRepo) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

// ---- Notifier ----

type captureNotifier struct {
	mu     sync.Mutex
	events []model.OrderEvent
}

func (n *captureNotifier) Notify(_ context.Context, event model.OrderEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) typesSent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}
