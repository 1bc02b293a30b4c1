package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

type createSubscriptionRequest struct {
	Title            string `json:"title"`
	Price            int64  `json:"price"`
	Currency         string `json:"currency"`
	Cycle            string `json:"billing_cycle"`
	MaxMembers       int    `json:"max_members"`
	Visibility       string `json:"visibility"`
	RequiresApproval bool   `json:"requires_approval"`
	Credential       string `json:"credential"`
}

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if req.Visibility == "" {
		req.Visibility = string(model.VisibilityPublic)
	}
	sub, err := s.subs.Create(r.Context(), ActorFrom(r.Context()), usecase.CreateSubscriptionInput{
		Title:            req.Title,
		Price:            req.Price,
		Currency:         req.Currency,
		Cycle:            model.BillingCycle(req.Cycle),
		MaxMembers:       req.MaxMembers,
		Visibility:       model.Visibility(req.Visibility),
		RequiresApproval: req.RequiresApproval,
		Credential:       req.Credential,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionJSON(sub))
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Get(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionJSON(sub))
}

func (s *Server) revealCredential(w http.ResponseWriter, r *http.Request) {
	plain, err := s.subs.RevealCredential(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"credential": plain})
}

func (s *Server) updateCapacity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxMembers int `json:"max_members"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	sub, err := s.subs.UpdateCapacity(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()), req.MaxMembers)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionJSON(sub))
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	sub, err := s.subs.UpdateStatus(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()), model.SubscriptionStatus(req.Status))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionJSON(sub))
}

func (s *Server) closeSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Close(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionJSON(sub))
}

func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewOwnerID string `json:"new_owner_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	sub, err := s.subs.TransferOwnership(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()), req.NewOwnerID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionJSON(sub))
}
