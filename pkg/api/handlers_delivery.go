package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/techimanshu8/flipkart/pkg/model"
	"github.com/techimanshu8/flipkart/pkg/service"
)

func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	var in service.AgentRegisterInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	agent, err := s.delivery.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) deliveryOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	orders, err := s.delivery.Orders(r.Context(), actor)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (s *Server) startDelivery(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	order, err := s.delivery.StartDelivery(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) generateOTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	code, err := s.delivery.GenerateOTP(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	// 骑手侧只收到回执，码由客户渠道送达
	if code == "" {
		writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent to customer"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"otp": code})
}

func (s *Server) completeDelivery(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		OTP string `json:"otp"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	order, err := s.delivery.Complete(r.Context(), actor, mux.Vars(r)["id"], body.OTP)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) setAvailability(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Available bool `json:"available"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.delivery.SetAvailability(r.Context(), actor, body.Available); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "availability updated"})
}

func (s *Server) updateLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.delivery.UpdateLocation(r.Context(), actor, body.Latitude, body.Longitude); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "location updated"})
}

// ---- admin ----

func (s *Server) adminListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	page, limit := queryPage(r)
	orders, total, err := s.orders.ListAll(r.Context(), actor, page, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

func (s *Server) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	order, err := s.orders.AdminSetStatus(r.Context(), actor, mux.Vars(r)["id"], model.OrderStatus(body.Status))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) adminForceDeliver(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	order, err := s.orders.AdminForceDeliver(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) adminAuditTrail(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	audits, err := s.orders.AuditTrail(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit": audits})
}

func (s *Server) adminVerifyAgent(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Verified bool `json:"verified"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.delivery.Verify(r.Context(), actor, mux.Vars(r)["id"], body.Verified); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "agent verification updated"})
}

func (s *Server) adminListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	users, err := s.users.List(r.Context(), actor)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (s *Server) adminGetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	user, err := s.users.Get(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) adminUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var in service.UserUpdateInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	user, err := s.users.Update(r.Context(), actor, mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	if err := s.users.Delete(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
