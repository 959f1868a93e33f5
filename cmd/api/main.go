package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/centuary/backend-dealer/internal/analytics"
	"github.com/centuary/backend-dealer/internal/audit"
	"github.com/centuary/backend-dealer/internal/auth"
	"github.com/centuary/backend-dealer/internal/cart"
	"github.com/centuary/backend-dealer/internal/catalog"
	"github.com/centuary/backend-dealer/internal/checkout"
	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/config"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/customer"
	"github.com/centuary/backend-dealer/internal/events"
	"github.com/centuary/backend-dealer/internal/grn"
	"github.com/centuary/backend-dealer/internal/health"
	"github.com/centuary/backend-dealer/internal/inventory"
	"github.com/centuary/backend-dealer/internal/invoice"
	"github.com/centuary/backend-dealer/internal/lock"
	"github.com/centuary/backend-dealer/internal/notify"
	"github.com/centuary/backend-dealer/internal/obs"
	"github.com/centuary/backend-dealer/internal/order"
	"github.com/centuary/backend-dealer/internal/queue"
	"github.com/centuary/backend-dealer/internal/ratelimit"
	"github.com/centuary/backend-dealer/internal/scheme"
	"github.com/centuary/backend-dealer/internal/security"
	"github.com/centuary/backend-dealer/internal/warranty"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "dealer")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "dealer-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	var crmClient crm.Client
	var tokens *crm.TokenSource
	switch cfg.CRMMode {
	case "mock":
		logger.Warn().Msg("running against the in-memory CRM mock")
		crmClient = crm.NewMock()
	default:
		tokens = &crm.TokenSource{
			HTTP:         &http.Client{Timeout: cfg.CRMTimeout},
			TokenURL:     cfg.CRMTokenURL,
			ClientID:     cfg.CRMClientID,
			ClientSecret: cfg.CRMClientSecret,
		}
		crmClient = crm.NewREST(cfg.CRMBaseURL, tokens, cfg.CRMTimeout, logger)
	}

	eventStore := &events.StreamStore{R: redisClient}
	notifiers := []events.Notifier{}
	if envBool("NOTIFY_EMAIL_ENABLED", false) {
		notifiers = append(notifiers, notify.EmailNotifier{
			Mail:         common.NopEmailSender{},
			Enabled:      true,
			From:         envOrDefault("NOTIFY_EMAIL_FROM", "noreply@centuary.example"),
			TopicToggles: topicToggles(envOrDefault("NOTIFY_EMAIL_TOPICS", "")),
		})
	}
	bus := &events.Bus{Store: eventStore, Notifiers: notifiers}

	auditSvc := &audit.Service{
		Store:        audit.StreamStore{R: redisClient},
		Enabled:      envBool("AUDIT_ENABLED", true),
		SamplingRate: envFloat("AUDIT_SAMPLING_RATE", 1.0),
	}
	recorder := audit.HTTPRecorder{
		Service: auditSvc,
		OnError: func(err error) { logger.Error().Err(err).Msg("record activity") },
	}
	auditHandler := audit.Handler{Store: auditSvc.Store}

	sessions := &auth.SessionStore{R: redisClient}
	authService, err := auth.NewService(auth.Config{
		CRM:        crmClient,
		Sessions:   sessions,
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService}
	authMiddleware := auth.Middleware{Service: authService}

	catalogSvc := &catalog.Service{
		CRM:   crmClient,
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	}
	catalogHandler := &catalog.Handler{Svc: catalogSvc}

	schemeSvc := &scheme.Service{CRM: crmClient}
	cartSvc := &cart.Service{
		Store:   &cart.Store{R: redisClient, TTL: cfg.CartTTL},
		Schemes: schemeSvc,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Products: catalogSvc, TaxBps: cfg.TaxRateBps}

	locks := lock.Locker{R: redisClient}
	checkoutSvc := &checkout.Service{
		CRM:    crmClient,
		Cart:   cartSvc,
		Locks:  locks,
		Events: bus,
		TaxBps: cfg.TaxRateBps,
		Logger: logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	enqueuer := queue.Enqueuer{R: redisClient, Prefix: "dealer", DedupTTL: cfg.IdempotencyTTL}
	grnSvc := &grn.Service{CRM: crmClient, R: redisClient, Queue: enqueuer, Logger: logger}
	grnHandler := &grn.Handler{Svc: grnSvc}

	validate := validator.New()
	customerSvc := &customer.Service{CRM: crmClient, Validate: validate}
	customerHandler := &customer.Handler{Svc: customerSvc}

	inventoryHandler := &inventory.Handler{Svc: &inventory.Service{CRM: crmClient}}
	invoiceHandler := &invoice.Handler{Svc: &invoice.Service{CRM: crmClient}}
	orderHandler := &order.Handler{Svc: &order.Service{CRM: crmClient, TaxBps: cfg.TaxRateBps}}

	warrantySvc := &warranty.Service{
		CRM:      crmClient,
		Products: catalogSvc,
		Events:   bus,
		Validate: validate,
		Logger:   logger,
	}
	warrantyHandler := &warranty.Handler{Svc: warrantySvc}

	analyticsSvc := &analytics.Service{
		CRM:          crmClient,
		R:            redisClient,
		TTL:          cfg.ReportCacheTTL,
		DefaultRange: envInt("REPORT_DEFAULT_RANGE_DAYS", 30),
	}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}

	queueAdmin := &queue.AdminHandler{R: redisClient, Prefix: "dealer", Queue: enqueuer, Logger: logger}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: ratelimit.DefaultPrefix},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return "login:" + common.ClientIP(r) },
			Window: envDurationMillis("RATE_LIMIT_LOGIN_WINDOW_MS", 60_000),
			Max:    envInt("RATE_LIMIT_LOGIN_MAX", 10),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limit check") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:     envBool("SECURE_HEADERS_ENABLED", true),
		EnableHSTS: envBool("SECURE_HSTS_ENABLED", false),
	}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(security.CSRF{}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{redis: redisClient, tokens: tokens},
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		CRMTimeout:   envDurationMillis("HEALTH_READY_CRM_TIMEOUT_MS", 800),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Group(func(portal chi.Router) {
			portal.Use(authMiddleware.RequireAuth)

			portal.Mount("/catalog", catalogHandler.Routes())
			portal.Route("/cart", cartHandler.Routes)

			portal.With(
				idem.Middleware,
				recorder.Middleware(audit.HTTPConfig{ResourceType: "orders", Action: "order.place"}),
			).Mount("/checkout", checkoutHandler.Routes())

			portal.Mount("/orders", orderHandler.Routes())
			portal.Mount("/customers", customerHandler.Routes())

			portal.Route("/goods-receipts", func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Use(recorder.Middleware(audit.HTTPConfig{ResourceType: "goods-receipts", ResourceIDParam: "recordID"}))
				grnHandler.Routes(g)
			})

			portal.Mount("/inventory", inventoryHandler.Routes())
			portal.Mount("/invoices", invoiceHandler.Routes())
			portal.With(
				recorder.Middleware(audit.HTTPConfig{ResourceType: "warranties"}),
			).Mount("/warranties", warrantyHandler.Routes())
			portal.Mount("/reports", analyticsHandler.Routes())
			portal.Mount("/activity", auditHandler.Routes())

			portal.Route("/admin/queue", func(q chi.Router) {
				q.Get("/dlq", queueAdmin.ListDLQ)
				q.Post("/dlq/replay", queueAdmin.ReplayDLQ)
				q.Delete("/dlq", queueAdmin.PurgeDLQ)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		drain := envDurationMillis("SHUTDOWN_DRAIN_MS", 2000)
		time.Sleep(drain)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("crm_mode", cfg.CRMMode).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis  *redis.Client
	tokens *crm.TokenSource
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

// PingCRM exercises the token endpoint. In mock mode there is nothing to
// probe and the CRM is always considered healthy.
func (c readinessChecker) PingCRM(ctx context.Context, timeout time.Duration) error {
	if c.tokens == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.tokens.Token(ctx)
	return err
}

func topicToggles(csv string) map[string]bool {
	toggles := map[string]bool{}
	for _, part := range strings.Split(csv, ",") {
		topic := strings.TrimSpace(part)
		if topic != "" {
			toggles[topic] = true
		}
	}
	if len(toggles) == 0 {
		return nil
	}
	return toggles
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
