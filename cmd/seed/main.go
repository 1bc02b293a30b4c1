// Command seed prepares a predictable local environment: it migrates and
// optionally wipes the database, creates a demo subscription with members and
// prints bearer tokens for the demo users.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/config"
	"github.com/gauravv01/subshare-sub000/internal/domain/model"
	payAdapters "github.com/gauravv01/subshare-sub000/internal/infra/adapters/payment"
	"github.com/gauravv01/subshare-sub000/internal/infra/api"
	pg "github.com/gauravv01/subshare-sub000/internal/infra/db/postgres"
	"github.com/gauravv01/subshare-sub000/internal/infra/logging"
	"github.com/gauravv01/subshare-sub000/internal/infra/security"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	wipe := flag.Bool("wipe", false, "truncate all tables before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log, true)
	if cfg.Database.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("seeding needs the postgres driver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	log.Info().Msg("[1/3] applying migrations")
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if *wipe {
		log.Info().Msg("[2/3] wiping existing data")
		if _, err := pool.Exec(ctx, `TRUNCATE transactions, memberships, subscriptions CASCADE`); err != nil {
			log.Fatal().Err(err).Msg("truncate")
		}
	}

	cipher, err := security.NewCredentialCipher(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("encryption")
	}
	subs := pg.NewSubscriptionRepo(pool)
	members := pg.NewMembershipRepo(pool)
	tm := pg.NewTxManager(pool)
	subUC := usecase.NewSubscriptionUseCase(subs, members, cipher, nil, tm, cfg.Ledger.ExternalTimeout, log)
	memUC := usecase.NewMembershipUseCase(subs, members, nil, tm, log)
	ledgerUC := usecase.NewLedgerUseCase(pg.NewTransactionRepo(pool), subs, members, payAdapters.NewNoopProcessor(), nil,
		usecase.LedgerConfig{FeeRateBps: cfg.Ledger.FeeBps, ExternalTimeout: cfg.Ledger.ExternalTimeout}, log)

	log.Info().Msg("[3/3] creating demo subscription")
	owner := model.Actor{UserID: "demo-owner"}
	sub, err := subUC.Create(ctx, owner, usecase.CreateSubscriptionInput{
		Title:      "Demo family streaming",
		Price:      1999,
		Currency:   "USD",
		Cycle:      model.CycleMonthly,
		MaxMembers: 4,
		Visibility: model.VisibilityPublic,
		Credential: "demo@example.com:change-me",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create subscription")
	}
	for _, u := range []string{"demo-alice", "demo-bob"} {
		if _, err := memUC.Join(ctx, sub.ID, u); err != nil {
			log.Fatal().Err(err).Str("user", u).Msg("join")
		}
		if _, err := ledgerUC.CreatePayment(ctx, usecase.CreatePaymentInput{
			UserID:           u,
			SubscriptionID:   sub.ID,
			Amount:           sub.Price / int64(sub.MaxMembers),
			PaymentMethodRef: "pm_demo",
			Description:      "seed share",
			IdempotencyKey:   "seed-" + sub.ID + "-" + u,
		}); err != nil {
			log.Fatal().Err(err).Str("user", u).Msg("payment")
		}
	}

	gw := api.NewJWTGateway(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	fmt.Printf("subscription: %s\n", sub.ID)
	for _, u := range []string{"demo-owner", "demo-alice", "demo-bob"} {
		tok, err := gw.Issue(u, nil, 24*time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("issue token")
		}
		fmt.Printf("%-11s %s\n", u+":", tok)
	}
	opsTok, _ := gw.Issue("demo-ops", []string{model.ClaimPlatformAdmin}, 24*time.Hour)
	fmt.Printf("%-11s %s\n", "demo-ops:", opsTok)
}
