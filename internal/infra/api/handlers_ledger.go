package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

type createPaymentRequest struct {
	SubscriptionID   string `json:"subscription_id"`
	Amount           int64  `json:"amount"`
	PaymentMethodRef string `json:"payment_method_ref"`
	Description      string `json:"description"`
	IdempotencyKey   string `json:"idempotency_key"`
}

// createPayment answers 201 for a completed charge, including replays of a
// completed one, and 402 with the FAILED row otherwise.
func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}
	tx, err := s.ledger.CreatePayment(r.Context(), usecase.CreatePaymentInput{
		UserID:           ActorFrom(r.Context()).UserID,
		SubscriptionID:   req.SubscriptionID,
		Amount:           req.Amount,
		PaymentMethodRef: req.PaymentMethodRef,
		Description:      req.Description,
		IdempotencyKey:   key,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) createRefund(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.CreateRefund(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) getRefund(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r.Context())
	tx, err := s.ledger.RefundFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if tx.UserID != actor.UserID && !actor.IsPlatformAdmin() {
		writeError(w, r, s.log, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

// recordPayout is an operator action: payouts move platform money.
func (s *Server) recordPayout(w http.ResponseWriter, r *http.Request) {
	if !ActorFrom(r.Context()).IsPlatformAdmin() {
		writeError(w, r, s.log, domain.ErrForbidden)
		return
	}
	tx, err := s.ledger.RecordPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) listMyTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.GetTransactionsForUser(r.Context(), ActorFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[transactionJSON]{Items: mapSlice(txs, toTransactionJSON)})
}

// listMemberTransactions is limited to platform admins; members use
// GET /transactions for their own history.
func (s *Server) listMemberTransactions(w http.ResponseWriter, r *http.Request) {
	if !ActorFrom(r.Context()).IsPlatformAdmin() {
		writeError(w, r, s.log, domain.ErrForbidden)
		return
	}
	txs, err := s.ledger.GetTransactionsForMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[transactionJSON]{Items: mapSlice(txs, toTransactionJSON)})
}
