package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

const requestTimeout = 30 * time.Second

// Server exposes the registry, membership and ledger use cases over JSON.
type Server struct {
	subs        usecase.SubscriptionUseCase
	memberships usecase.MembershipUseCase
	ledger      usecase.LedgerUseCase
	auth        adapter.AuthGateway
	limiter     Limiter
	ratePerMin  int
	log         *zerolog.Logger
}

type Options struct {
	Limiter         Limiter // nil disables rate limiting
	RateLimitPerMin int
}

func NewServer(
	subs usecase.SubscriptionUseCase,
	memberships usecase.MembershipUseCase,
	ledger usecase.LedgerUseCase,
	auth adapter.AuthGateway,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	compLog := logger.With().Str("component", "API").Logger()
	return &Server{
		subs:        subs,
		memberships: memberships,
		ledger:      ledger,
		auth:        auth,
		limiter:     opts.Limiter,
		ratePerMin:  opts.RateLimitPerMin,
		log:         &compLog,
	}
}

// Router builds the chi router with health, metrics and the v1 API.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(requestTimeout), Authenticate(s.auth), RateLimit(s.limiter, s.ratePerMin, s.log))

		r.Post("/subscriptions", s.createSubscription)
		r.Route("/subscriptions/{id}", func(r chi.Router) {
			r.Get("/", s.getSubscription)
			r.Get("/credential", s.revealCredential)
			r.Put("/capacity", s.updateCapacity)
			r.Put("/status", s.updateStatus)
			r.Post("/close", s.closeSubscription)
			r.Post("/transfer", s.transferOwnership)

			r.Get("/members", s.listMembers)
			r.Post("/members", s.join)
			r.Delete("/members/me", s.leave)
			r.Put("/members/{userID}/role", s.updateRole)
			r.Delete("/members/{userID}", s.removeMember)
			r.Post("/members/{userID}/block", s.blockMember)
			r.Post("/members/{userID}/unblock", s.unblockMember)
			r.Post("/members/{userID}/approve", s.approveMember)
		})

		r.Post("/payments", s.createPayment)
		r.Get("/transactions", s.listMyTransactions)
		r.Route("/transactions/{id}", func(r chi.Router) {
			r.Post("/refund", s.createRefund)
			r.Get("/refund", s.getRefund)
			r.Post("/payout", s.recordPayout)
		})
		r.Get("/memberships/{id}/transactions", s.listMemberTransactions)
	})
	return r
}
