package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/techimanshu8/flipkart/pkg/service"
)

func (s *Server) sellerDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	dash, err := s.sellers.Dashboard(r.Context(), actor)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) sellerListProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	page, limit := queryPage(r)
	products, total, err := s.sellers.ListProducts(r.Context(), actor, page, limit)
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

func (s *Server) sellerCreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var in service.ProductInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.sellers.CreateProduct(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) sellerUpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var in service.ProductInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.sellers.UpdateProduct(r.Context(), actor, mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) sellerDeleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	if err := s.sellers.DeleteProduct(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (s *Server) sellerLowStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	products, err := s.sellers.LowStock(r.Context(), actor)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (s *Server) sellerOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	page, limit := queryPage(r)
	orders, total, err := s.sellers.Orders(r.Context(), actor, page, limit)
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

func (s *Server) sellerAccept(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	order, err := s.sellers.Accept(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) sellerShip(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		TrackingNumber string `json:"tracking_number"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	order, err := s.sellers.Ship(r.Context(), actor, mux.Vars(r)["id"], body.TrackingNumber)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) sellerAssign(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		AgentID string `json:"agent_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	order, err := s.sellers.AssignAgent(r.Context(), actor, mux.Vars(r)["id"], body.AgentID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) sellerCancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.mustActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	order, err := s.sellers.CancelBySeller(r.Context(), actor, mux.Vars(r)["id"], body.Reason)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) listAvailableAgents(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.mustActor(w, r); !ok {
		return
	}
	agents, err := s.delivery.ListAvailable(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": agents})
}
