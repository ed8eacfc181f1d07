package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/repository"
	"github.com/techimanshu8/flipkart/pkg/service"
)

type Server struct {
	log    *logrus.Logger
	tokens *auth.TokenVerifier

	products  repository.ProductRepo
	orders    *service.OrderService
	sellers   *service.SellerService
	delivery  *service.DeliveryService
	addresses *service.AddressService
	carts     *service.CartService
	invoices  *service.InvoiceService
	users     *service.UserService

	limiter *Limiter
}

func NewServer(
	log *logrus.Logger,
	tokens *auth.TokenVerifier,
	products repository.ProductRepo,
	orders *service.OrderService,
	sellers *service.SellerService,
	delivery *service.DeliveryService,
	addresses *service.AddressService,
	carts *service.CartService,
	invoices *service.InvoiceService,
	users *service.UserService,
	limiter *Limiter,
) *Server {
	return &Server{
		log:       log,
		tokens:    tokens,
		products:  products,
		orders:    orders,
		sellers:   sellers,
		delivery:  delivery,
		addresses: addresses,
		carts:     carts,
		invoices:  invoices,
		users:     users,
		limiter:   limiter,
	}
}

// Handler 完整中间件链：限流 -> 访问日志 -> 路由
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.routes(r)

	var h http.Handler = r
	h = &logHandler{log: s.log, next: h}
	if s.limiter != nil {
		h = s.limiter.GlobalAndIPLimiter(h)
	}
	return h
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	// 公开接口
	r.HandleFunc("/api/products", s.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id}", s.getProduct).Methods(http.MethodGet)
	r.HandleFunc("/api/delivery/register", s.registerAgent).Methods(http.MethodPost)

	// 需要认证的接口
	api := r.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(s.requireAuth))

	api.HandleFunc("/cart", s.getCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", s.clearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", s.addCartItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productID}", s.setCartQuantity).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{productID}", s.removeCartItem).Methods(http.MethodDelete)

	api.HandleFunc("/orders", s.checkout).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.listMyOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/pay", s.payOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/cancel", s.cancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/invoice", s.getInvoice).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/rating", s.rateDelivery).Methods(http.MethodPost)

	api.HandleFunc("/users/addresses", s.listAddresses).Methods(http.MethodGet)
	api.HandleFunc("/users/addresses", s.addAddress).Methods(http.MethodPost)
	api.HandleFunc("/users/addresses/{id}", s.updateAddress).Methods(http.MethodPut)
	api.HandleFunc("/users/addresses/{id}", s.deleteAddress).Methods(http.MethodDelete)
	api.HandleFunc("/users/addresses/{id}/default", s.setDefaultAddress).Methods(http.MethodPut)

	api.HandleFunc("/seller/dashboard", s.sellerDashboard).Methods(http.MethodGet)
	api.HandleFunc("/seller/products", s.sellerListProducts).Methods(http.MethodGet)
	api.HandleFunc("/seller/products", s.sellerCreateProduct).Methods(http.MethodPost)
	api.HandleFunc("/seller/products/low-stock", s.sellerLowStock).Methods(http.MethodGet)
	api.HandleFunc("/seller/products/{id}", s.sellerUpdateProduct).Methods(http.MethodPut)
	api.HandleFunc("/seller/products/{id}", s.sellerDeleteProduct).Methods(http.MethodDelete)
	api.HandleFunc("/seller/orders", s.sellerOrders).Methods(http.MethodGet)
	api.HandleFunc("/seller/orders/{id}/accept", s.sellerAccept).Methods(http.MethodPost)
	api.HandleFunc("/seller/orders/{id}/ship", s.sellerShip).Methods(http.MethodPost)
	api.HandleFunc("/seller/orders/{id}/assign", s.sellerAssign).Methods(http.MethodPost)
	api.HandleFunc("/seller/orders/{id}/cancel", s.sellerCancel).Methods(http.MethodPost)
	api.HandleFunc("/seller/orders/{id}/otp", s.generateOTP).Methods(http.MethodPost)
	api.HandleFunc("/seller/agents", s.listAvailableAgents).Methods(http.MethodGet)

	api.HandleFunc("/delivery/orders", s.deliveryOrders).Methods(http.MethodGet)
	api.HandleFunc("/delivery/orders/{id}/start", s.startDelivery).Methods(http.MethodPost)
	api.HandleFunc("/delivery/orders/{id}/otp", s.generateOTP).Methods(http.MethodPost)
	api.HandleFunc("/delivery/orders/{id}/complete", s.completeDelivery).Methods(http.MethodPost)
	api.HandleFunc("/delivery/availability", s.setAvailability).Methods(http.MethodPut)
	api.HandleFunc("/delivery/location", s.updateLocation).Methods(http.MethodPut)

	api.HandleFunc("/admin/orders", s.adminListOrders).Methods(http.MethodGet)
	api.HandleFunc("/admin/orders/{id}/status", s.adminSetStatus).Methods(http.MethodPut)
	api.HandleFunc("/admin/orders/{id}/force-deliver", s.adminForceDeliver).Methods(http.MethodPost)
	api.HandleFunc("/admin/orders/{id}/audit", s.adminAuditTrail).Methods(http.MethodGet)
	api.HandleFunc("/admin/agents/{id}/verify", s.adminVerifyAgent).Methods(http.MethodPut)
	api.HandleFunc("/admin/users", s.adminListUsers).Methods(http.MethodGet)
	api.HandleFunc("/admin/users/{id}", s.adminGetUser).Methods(http.MethodGet)
	api.HandleFunc("/admin/users/{id}", s.adminUpdateUser).Methods(http.MethodPut)
	api.HandleFunc("/admin/users/{id}", s.adminDeleteUser).Methods(http.MethodDelete)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
