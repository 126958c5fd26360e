package main

import (
	"context"
	"errors"
	"flag"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"remithub/compliance/aml"
	"remithub/compliance/kyc"
	"remithub/config"
	"remithub/core/events"
	"remithub/gateway/middleware"
	"remithub/gateway/routes"
	"remithub/native/common"
	"remithub/native/escrow"
	"remithub/native/fees"
	"remithub/native/fx"
	"remithub/native/hub"
	"remithub/observability"
	"remithub/observability/logging"
	telemetry "remithub/observability/otel"
	"remithub/storage"
)

func remittanceSchedule(cfg config.Hub) fees.Schedule {
	schedule := fees.Schedule{
		PlatformBps: cfg.RemitPlatformBps,
		ForexBps:    cfg.RemitForexBps,
	}
	if cfg.RemitComplianceFlat > 0 {
		schedule.ComplianceFlat = big.NewInt(cfg.RemitComplianceFlat)
	}
	if cfg.RemitMinFee > 0 {
		schedule.MinFee = big.NewInt(cfg.RemitMinFee)
	}
	if cfg.RemitMaxFee > 0 {
		schedule.MaxFee = big.NewInt(cfg.RemitMaxFee)
	}
	return schedule
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./remithub.toml", "path to daemon configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("REMITHUB_ENV"))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup("remitd", env, logging.Rotation{}).Error("load config", "error", err)
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Environment
	}

	logger := logging.Setup("remitd", env, logging.Rotation{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if otlpEndpoint == "" {
		otlpEndpoint = cfg.Telemetry.Endpoint
	}
	insecure := cfg.Telemetry.Insecure
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "remitd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		logger.Error("initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	state := storage.NewState(db)

	admin, err := config.Address(cfg.Admin)
	if err != nil {
		logger.Error("parse admin address", "error", err)
		os.Exit(1)
	}
	custody, err := config.Address(cfg.Custody)
	if err != nil {
		logger.Error("parse custody address", "error", err)
		os.Exit(1)
	}
	feeWallet, err := config.Address(cfg.FeeWallet)
	if err != nil {
		logger.Error("parse fee wallet address", "error", err)
		os.Exit(1)
	}

	pauses := common.PauseSet{}
	if cfg.Pauses.Escrow {
		pauses[escrow.PauseModule] = true
	}
	if cfg.Pauses.Hub {
		pauses[hub.PauseModule] = true
	}
	limiter := common.NewRateLimiter(common.RateLimitConfig{
		Enabled:  cfg.RateLimit.Enabled,
		MaxCount: cfg.RateLimit.MaxCount,
		Interval: cfg.RateLimit.IntervalSecs,
	}, admin)

	emitter := observability.NewMeterEmitter(events.NoopEmitter{})

	engine := escrow.NewEngine()
	engine.SetState(state)
	engine.SetAdmin(admin)
	engine.SetCustody(custody)
	engine.SetFeeWallet(feeWallet)
	engine.SetFeeBps(cfg.Escrow.ReleaseFeeBps, cfg.Escrow.RefundFeeBps)
	if cfg.Escrow.KycEnabled {
		engine.SetKycChecker(kyc.NewRegistry(admin))
	}
	engine.SetPauses(pauses)
	engine.SetRateLimiter(limiter)
	engine.SetEmitter(emitter)

	for _, code := range cfg.Escrow.SupportedAssets {
		asset := escrow.Asset{Code: code}
		if err := state.SupportedAssetPut(asset.Key(), true); err != nil {
			logger.Error("seed supported asset", "asset", asset.Key(), "error", err)
			os.Exit(1)
		}
	}

	rates := fx.NewManualSource()
	resolver := fx.NewResolver(rates, nil, state, cfg.Oracle.MaxStalenessSecs)

	h := hub.New()
	h.SetState(state)
	h.SetEscrowEngine(engine)
	h.SetResolver(resolver)
	h.SetAdmin(admin)
	h.SetPauses(pauses)
	h.SetRateLimiter(limiter)
	h.SetScreener(aml.NewScoreTable(admin), cfg.Hub.AmlRiskThreshold)
	h.SetRemittanceFees(remittanceSchedule(cfg.Hub))
	h.SetEmitter(emitter)

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   "remitd",
		MetricsPrefix: "remithub_gateway",
		LogRequests:   cfg.Gateway.LogRequests,
		Enabled:       true,
	}, logger)
	httpLimits := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"escrow": {RequestsPerMinute: cfg.Gateway.RequestsPerMinute, Burst: cfg.Gateway.Burst},
		"hub":    {RequestsPerMinute: cfg.Gateway.RequestsPerMinute, Burst: cfg.Gateway.Burst},
	})

	handler, err := routes.New(routes.Config{
		Escrow:        engine,
		Hub:           h,
		RateLimiter:   httpLimits,
		Observability: obs,
	})
	if err != nil {
		logger.Error("assemble router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.ListenAddress, "env", env)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}
}
