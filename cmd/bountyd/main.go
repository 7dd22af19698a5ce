// Command bountyd runs the bug-bounty settlement service: the custodial
// vault, the challenge lifecycle manager, the monitoring and adjudication
// judge, and the reputation observer, all exposed over HTTP, following
// services/lending/main.go's flag/config/signal-driven startup shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bountyvault/core/internal/adjudication"
	"github.com/bountyvault/core/internal/challenge"
	bountyconfig "github.com/bountyvault/core/internal/config"
	"github.com/bountyvault/core/internal/gatewaystore"
	"github.com/bountyvault/core/internal/httpapi"
	apimiddleware "github.com/bountyvault/core/internal/httpapi/middleware"
	"github.com/bountyvault/core/internal/identity"
	"github.com/bountyvault/core/internal/kernel"
	"github.com/bountyvault/core/internal/observability/logging"
	"github.com/bountyvault/core/internal/observability/metrics"
	"github.com/bountyvault/core/internal/ports"
	"github.com/bountyvault/core/internal/reputation"
	"github.com/bountyvault/core/internal/vault"
)

func main() {
	var cfgPath, thresholdsPath string
	flag.StringVar(&cfgPath, "config", "", "path to a static bountyd.yaml configuration file")
	flag.StringVar(&thresholdsPath, "thresholds", "", "path to a bounty.toml achievement/fee threshold override file")
	flag.Parse()

	var base bountyconfig.Config
	if cfgPath != "" {
		var err error
		base, err = bountyconfig.LoadFile(cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bountyd:", err)
			os.Exit(1)
		}
	}
	cfg := bountyconfig.LoadConfigFromEnv(base)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "bountyd:", err)
		os.Exit(1)
	}

	thresholds, err := bountyconfig.LoadThresholds(thresholdsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bountyd:", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Options{Service: "bountyd", Env: cfg.Environment, LogFile: cfg.LogFile})
	logger.Info("starting bountyd", "config", cfg.Sanitized(), "thresholds", thresholds)

	admins := make([]kernel.Principal, 0, len(cfg.AdminPrincipals))
	for _, raw := range cfg.AdminPrincipals {
		p, err := identity.Decode(raw)
		if err != nil {
			logger.Error("invalid admin principal", "value", raw, "error", err)
			os.Exit(1)
		}
		admins = append(admins, p)
	}
	feeRecipient, err := identity.Decode(cfg.FeeRecipient)
	if err != nil {
		logger.Error("invalid fee recipient principal", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	vaultMetrics := metrics.NewVaultCollector(reg)
	challengeMetrics := metrics.NewChallengeCollector(reg)
	adjudicationMetrics := metrics.NewAdjudicationCollector(reg)
	reputationMetrics := metrics.NewReputationCollector(reg)

	v := vault.NewWithFeeBasisPoints(admins, feeRecipient, thresholds.PlatformFeeBasisPoints, ports.NoopTransfer{}, vaultMetrics)

	// challengeVaultAuth/adjudicationVaultAuth are internal service
	// principals distinct from any real user; each is authorized against the
	// vault so the challenge and adjudication engines can call LockFunds/
	// UnlockFunds on behalf of the users they act for.
	var challengeVaultAuth, adjudicationVaultAuth kernel.Principal
	challengeVaultAuth[0] = 0x01
	adjudicationVaultAuth[0] = 0x02
	for _, admin := range admins {
		_ = v.AddAuthorizedCaller(admin, challengeVaultAuth)
		_ = v.AddAuthorizedCaller(admin, adjudicationVaultAuth)
	}

	rep := reputation.NewWithThresholds(reputation.Thresholds{
		SerialHackerAttacks:      thresholds.SerialHackerAttacks,
		ActiveContributorCount:   thresholds.ActiveContributorCount,
		GenerousCompanyThreshold: thresholds.GenerousCompanyThreshold,
	}, reputationMetrics)

	deploy := &ports.StaticDeploy{}
	probe := ports.NewVaultProbe(func(ctx context.Context, target kernel.Principal) (uint64, error) {
		return v.GetBalance(target, kernel.NativeToken()).Available, nil
	})

	var adjEngine *adjudication.Engine
	chEngine := challenge.New(challenge.Config{
		Admins:    admins,
		Vault:     v,
		VaultAuth: challengeVaultAuth,
		Monitor:   monitorAdapter{get: func() *adjudication.Engine { return adjEngine }},
		Reputation: reputationNotifierAdapter{
			fn: rep.RecordChallengeCreated,
		},
		Deploy:  deploy,
		Metrics: challengeMetrics,
	})

	adjEngine = adjudication.New(adjudication.Config{
		ChallengeCaller: challengeVaultAuth,
		Admins:          admins,
		Probe:           probe,
		Vault:           v,
		VaultAuth:       adjudicationVaultAuth,
		Challenges:      chEngine,
		Reputation: attackNotifierAdapter{
			fn: rep.RecordSuccessfulAttack,
		},
		Metrics: adjudicationMetrics,
	})

	store, err := gatewaystore.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open gateway store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	auth := apimiddleware.NewAuthenticator(apimiddleware.AuthConfig{
		Enabled:    strings.TrimSpace(cfg.JWTSecret) != "",
		HMACSecret: cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	}, logger)
	limiter := apimiddleware.NewRateLimiter(cfg.RateLimitPerMin)

	server := httpapi.New(httpapi.Config{
		Vault:        v,
		Challenges:   chEngine,
		Adjudication: adjEngine,
		Reputation:   rep,
		Store:        store,
		Auth:         auth,
		Limiter:      limiter,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/", server.Router())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := ports.TickerScheduler{}
	scheduler.Every(ctx, cfg.TickInterval, func(ctx context.Context) {
		for _, tickErr := range adjEngine.Tick(ctx) {
			logger.Warn("adjudication tick error", "error", tickErr)
		}
	})
	scheduler.Every(ctx, cfg.SweepInterval, func(ctx context.Context) {
		chEngine.ExpirationSweep(ctx)
	})

	go func() {
		logger.Info("listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// monitorAdapter defers resolving the adjudication engine reference until
// first use, breaking the construction-order cycle between the challenge
// engine (which needs a Monitor at construction) and the adjudication engine
// (which needs the challenge engine at construction).
type monitorAdapter struct {
	get func() *adjudication.Engine
}

func (m monitorAdapter) StartMonitoring(ctx context.Context, caller kernel.Principal, challengeID uint64, target kernel.Principal) error {
	return m.get().StartMonitoring(ctx, caller, challengeID, target)
}

func (m monitorAdapter) StopMonitoring(ctx context.Context, caller kernel.Principal, challengeID uint64) error {
	return m.get().StopMonitoring(ctx, caller, challengeID)
}

type reputationNotifierAdapter struct {
	fn func(ctx context.Context, company kernel.Principal, challengeID uint64, bounty uint64, token kernel.Token) error
}

func (r reputationNotifierAdapter) RecordChallengeCreated(ctx context.Context, company kernel.Principal, challengeID uint64, bounty uint64, token kernel.Token) error {
	return r.fn(ctx, company, challengeID, bounty, token)
}

type attackNotifierAdapter struct {
	fn func(ctx context.Context, hacker kernel.Principal, challengeID uint64, bounty uint64, token kernel.Token) error
}

func (a attackNotifierAdapter) RecordSuccessfulAttack(ctx context.Context, hacker kernel.Principal, challengeID uint64, bounty uint64, token kernel.Token) error {
	return a.fn(ctx, hacker, challengeID, bounty, token)
}
