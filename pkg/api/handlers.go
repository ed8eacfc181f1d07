package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/techimanshu8/flipkart/pkg/auth"
	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/service"
)

func queryPage(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func (s *Server) mustActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, r, s.log, errUnauthorized)
	}
	return actor, ok
}

// ---- catalog ----

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	page, limit := queryPage(r)
	products, total, err := s.products.List(r.Context(), (page-1)*limit, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.products.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ---- cart ----

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	view, err := s.carts.Get(r.Context(), actor)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	if err := s.carts.Add(r.Context(), actor, body.ProductID, body.Quantity); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "added to cart"})
}

func (s *Server) setCartQuantity(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.carts.SetQuantity(r.Context(), actor, mux.Vars(r)["productID"], body.Quantity); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart updated"})
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	if err := s.carts.Remove(r.Context(), actor, mux.Vars(r)["productID"]); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "removed from cart"})
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	if err := s.carts.Clear(r.Context(), actor); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

// ---- orders ----

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var in service.CheckoutInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	order, err := s.orders.Checkout(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) listMyOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	orders, err := s.orders.ListMine(r.Context(), actor)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	order, err := s.orders.GetOrder(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	// 签收码只在订单所有者自己的视图里出现
	if actor.ID == order.UserID && order.DeliveryOTP != "" {
		writeJSON(w, http.StatusOK, struct {
			*model.Order
			DeliveryOTP string `json:"delivery_otp"`
		}{order, order.DeliveryOTP})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) payOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		PaymentRef string `json:"payment_ref"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	order, err := s.orders.MarkPaid(r.Context(), actor, mux.Vars(r)["id"], body.PaymentRef)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	order, err := s.orders.CancelByCustomer(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	data, contentType, err := s.invoices.Get(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) rateDelivery(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.delivery.Rate(r.Context(), actor, mux.Vars(r)["id"], body.Rating, body.Comment); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "rating recorded"})
}

// ---- addresses ----

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	addrs, err := s.addresses.List(r.Context(), actor)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"addresses": addrs})
}

func (s *Server) addAddress(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var in service.AddressInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	addr, err := s.addresses.Add(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, addr)
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var in service.AddressInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	addr, err := s.addresses.Update(r.Context(), actor, mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	if err := s.addresses.Delete(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "address deleted"})
}

func (s *Server) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	if err := s.addresses.SetDefault(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "default address updated"})
}
