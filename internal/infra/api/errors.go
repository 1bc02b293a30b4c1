package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/domain"
	"github.com/gauravv01/subshare-sub000/internal/infra/logging"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

type errorBody struct {
	Error       string           `json:"error"`
	Transaction *transactionJSON `json:"transaction,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPaymentProcessing):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrSubscriptionFull),
		errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrNotMember),
		errors.Is(err, domain.ErrCapacityConflict),
		errors.Is(err, domain.ErrSubscriptionInactive),
		errors.Is(err, domain.ErrOwnerCannotLeave),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrRefundNotEligible),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Internal failures are
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	code := statusFor(err)
	body := errorBody{Error: err.Error()}
	if code == http.StatusInternalServerError {
		logging.With(r.Context(), logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body.Error = "internal error"
	}
	var pe *usecase.PaymentError
	if errors.As(err, &pe) && pe.Transaction != nil {
		tj := toTransactionJSON(pe.Transaction)
		body.Transaction = &tj
	}
	writeJSON(w, code, body)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return domain.Validation("body", "is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Validation("body", "is not valid JSON: "+err.Error())
	}
	return nil
}
