package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
)

// listMembers runs the registry visibility check first, so private groups
// stay hidden from outsiders.
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.subs.Get(r.Context(), id, ActorFrom(r.Context())); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	members, err := s.memberships.GetMembers(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[membershipJSON]{Items: mapSlice(members, toMembershipJSON)})
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	m, err := s.memberships.Join(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipJSON(m))
}

func (s *Server) leave(w http.ResponseWriter, r *http.Request) {
	if err := s.memberships.Leave(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()).UserID); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	m, err := s.memberships.UpdateMemberRole(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"), model.MemberRole(req.Role), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipJSON(m))
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, s.memberships.Remove)
}

func (s *Server) blockMember(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, s.memberships.Block)
}

func (s *Server) unblockMember(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, s.memberships.Unblock)
}

func (s *Server) approveMember(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, s.memberships.Approve)
}

type moderationFunc func(ctx context.Context, subscriptionID, targetUserID string, requester model.Actor) error

func (s *Server) moderate(w http.ResponseWriter, r *http.Request, fn moderationFunc) {
	if err := fn(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"), ActorFrom(r.Context())); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
