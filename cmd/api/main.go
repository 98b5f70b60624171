package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/config"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/notify"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/router"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/session"
	"github.com/ovaphlow/pitchfork/service-feed-identity/pkg/database"
	"github.com/ovaphlow/pitchfork/service-feed-identity/pkg/utilities"
)

func main() {
	// best-effort: without a .env file the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-feed-identity")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	db, err := database.Open(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	accounts := repo.NewAccountRepo(db)
	if cfg.EnsureSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := accounts.EnsureTable(ctx)
		cancel()
		if err != nil {
			sugar.Fatalf("ensure schema: %v", err)
		}
	}

	issuer, err := session.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		sugar.Fatalf("token issuer: %v", err)
	}

	gateway := notify.NewLogGateway(issuer, cfg.BaseURL, cfg.MailLinkTTL, sugar.Named("mail"))
	dispatcher := notify.NewDispatcher(gateway, cfg.NotifyTimeout, sugar.Named("notify"))

	ids := utilities.NewIDGenerator(cfg.SnowflakeNode)
	svc := account.NewService(accounts, account.BcryptHasher{Cost: cfg.BcryptCost}, issuer, dispatcher, sugar,
		account.WithTokenTTL(cfg.JWTExpiration),
		account.WithIDGenerator(ids.NewID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.RegisterRoutes(sugar, account.NewHandler(svc, sugar), issuer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running", "addr", cfg.HTTPAddr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	// let in-flight emails finish before the process exits
	dispatcher.Wait()

	sugar.Info("goodbye")
}
