package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/awibowo/backend-storefront/internal/analytics"
	"github.com/awibowo/backend-storefront/internal/auth"
	"github.com/awibowo/backend-storefront/internal/cart"
	"github.com/awibowo/backend-storefront/internal/catalog"
	"github.com/awibowo/backend-storefront/internal/checkout"
	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/config"
	"github.com/awibowo/backend-storefront/internal/coupon"
	"github.com/awibowo/backend-storefront/internal/events"
	"github.com/awibowo/backend-storefront/internal/health"
	"github.com/awibowo/backend-storefront/internal/notify"
	"github.com/awibowo/backend-storefront/internal/obs"
	"github.com/awibowo/backend-storefront/internal/order"
	"github.com/awibowo/backend-storefront/internal/payment"
	"github.com/awibowo/backend-storefront/internal/pricing"
	"github.com/awibowo/backend-storefront/internal/ratelimit"
	"github.com/awibowo/backend-storefront/internal/security"
	"github.com/awibowo/backend-storefront/internal/store"
	"github.com/awibowo/backend-storefront/internal/user"
	"github.com/awibowo/backend-storefront/internal/wishlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := runMigrations(cfg); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	st, err := store.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if tracingEnabled {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	taskOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(taskOpt)
	defer func() { _ = taskClient.Close() }()

	validate := common.NewValidator()
	pool := st.Pool

	users := store.Users{DB: pool}
	sessions := store.Sessions{DB: pool}
	catalogRepo := store.Catalog{DB: pool}
	carts := store.Carts{DB: pool}
	wishlists := store.Wishlists{DB: pool}
	coupons := store.Coupons{DB: pool}
	orders := store.Orders{DB: pool}
	payments := store.Payments{DB: pool}
	addresses := store.Addresses{DB: pool}
	outbox := store.Events{DB: pool}
	analyticsRepo := store.Analytics{DB: pool}

	enqueuer := notify.Enqueuer{Client: taskClient}

	bus := events.NewBus(outbox)
	bus.Subscribe(events.TopicOrderCreated, notify.OrderCreatedHandler(enqueuer))
	bus.Subscribe(events.TopicOrderPaid, notify.OrderStatusHandler(enqueuer))
	bus.Subscribe(events.TopicOrderCancelled, notify.OrderStatusHandler(enqueuer))
	bus.Subscribe(events.TopicOrderStatusChanged, notify.OrderStatusHandler(enqueuer))

	authService, err := auth.NewService(auth.Config{
		Users:           users,
		Sessions:        sessions,
		Redis:           redisClient,
		Notifier:        enqueuer,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		ResetTokenTTL:   cfg.PasswordResetTTL,
		OTPTTL:          cfg.OTPTTL,
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		PublicBaseURL:   cfg.PublicBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authMW := auth.Middleware{Service: authService}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:        catalogRepo,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	couponService := &coupon.Service{Coupons: coupons}
	shippingPolicy := pricing.ShippingPolicy{
		FreeThreshold: cfg.FreeShippingThreshold,
		FlatFee:       cfg.FlatShippingFee,
	}
	cartService := &cart.Service{
		Carts:    carts,
		Products: catalogRepo,
		Coupons:  couponService,
		TaxRate:  cfg.TaxRate,
		Shipping: shippingPolicy,
	}
	wishlistService := &wishlist.Service{Wishlists: wishlists, Products: catalogRepo, Cart: cartService}
	checkoutService := &checkout.Service{
		Cart:      cartService,
		Writer:    checkout.TxWriter{Store: st},
		Addresses: addresses,
		Users:     users,
		Coupons:   coupons,
		Currency:  cfg.CurrencyCode,
	}
	orderService := &order.Service{Orders: orders, Users: users, Bus: bus}
	provider, err := payment.ProviderFor(cfg.PaymentProvider, cfg.PublicBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("select payment provider")
	}
	paymentService := &payment.Service{
		Payments: payments,
		Orders:   orders,
		Orderer:  orderService,
		Provider: provider,
		Bus:      bus,
		Currency: cfg.CurrencyCode,
	}
	userService := &user.Service{Users: users, Addresses: addresses}
	analyticsService := &analytics.Service{Store: analyticsRepo, Redis: redisClient, TTL: cfg.AnalyticsCacheTTL}

	authHandler := &auth.Handler{Service: authService, Validate: validate, CartMerger: cartService}
	catalogHandler := &catalog.Handler{Service: catalogService}
	cartHandler := &cart.Handler{Service: cartService, Validate: validate}
	wishlistHandler := &wishlist.Handler{Service: wishlistService, Validate: validate}
	checkoutHandler := &checkout.Handler{Service: checkoutService, Validate: validate}
	orderHandler := &order.Handler{Service: orderService, Validate: validate}
	paymentHandler := &payment.Handler{Service: paymentService, Validate: validate}
	couponHandler := &coupon.Handler{Service: couponService, Validate: validate}
	userHandler := &user.Handler{Service: userService, Validate: validate}
	analyticsHandler := &analytics.Handler{Service: analyticsService}

	limiterStore, err := ratelimit.NewRedisStore(redisClient, "storefront:ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	authLimiter, err := ratelimit.Middleware(limiterStore, cfg.AuthRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse auth rate limit")
	}
	otpLimiter, err := ratelimit.Middleware(limiterStore, cfg.OTPRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse otp rate limit")
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, nil, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Cart-Token", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{Checker: health.Probes{Pool: pool, Redis: redisClient}}
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.ListCategories)
		v.Get("/banners", catalogHandler.ListBanners)
		v.Get("/products", catalogHandler.ListProducts)
		v.Get("/products/{slug}", catalogHandler.GetProduct)
		v.Get("/products/{slug}/related", catalogHandler.ListRelated)

		v.Route("/auth", func(a chi.Router) {
			a.Use(authLimiter)
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.With(otpLimiter).Post("/otp/request", authHandler.RequestOTP)
			a.With(otpLimiter).Post("/otp/verify", authHandler.VerifyOTP)
			a.Post("/password/forgot", authHandler.ForgotPassword)
			a.Post("/password/reset", authHandler.ResetPassword)
			a.With(authMW.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMW.Authenticate)
			c.Get("/", cartHandler.Get)
			c.With(idem.Middleware).Post("/items", cartHandler.AddItem)
			c.Patch("/items/{productID}", cartHandler.UpdateItem)
			c.Delete("/items/{productID}", cartHandler.RemoveItem)
			c.Delete("/", cartHandler.Clear)
			c.Post("/coupon", cartHandler.ApplyCoupon)
			c.Delete("/coupon", cartHandler.RemoveCoupon)
		})

		v.Route("/wishlist", func(wl chi.Router) {
			wl.Use(authMW.RequireAuth)
			wl.Get("/", wishlistHandler.List)
			wl.Post("/", wishlistHandler.Add)
			wl.Post("/toggle", wishlistHandler.Toggle)
			wl.Delete("/{productID}", wishlistHandler.Remove)
			wl.Post("/{productID}/move-to-cart", wishlistHandler.MoveToCart)
		})

		v.With(authMW.RequireAuth, idem.Middleware).Post("/checkout", checkoutHandler.Place)

		v.Group(func(g chi.Router) {
			g.Use(authMW.RequireAuth)
			g.Get("/orders", orderHandler.List)
			g.Get("/orders/{orderID}", orderHandler.Get)
			g.Get("/orders/{orderID}/tracking", orderHandler.Tracking)
			g.Post("/orders/{orderID}/cancel", orderHandler.Cancel)
			g.With(idem.Middleware).Post("/orders/{orderID}/payment", paymentHandler.CreateIntent)
			g.Get("/orders/{orderID}/payment", paymentHandler.GetStatus)
		})

		v.Post("/payments/callback", paymentHandler.Callback)

		v.Route("/me", func(me chi.Router) {
			me.Use(authMW.RequireAuth)
			me.Get("/profile", userHandler.GetProfile)
			me.Put("/profile", userHandler.UpdateProfile)
			me.Get("/addresses", userHandler.ListAddresses)
			me.Post("/addresses", userHandler.CreateAddress)
			me.Put("/addresses/{addressID}", userHandler.UpdateAddress)
			me.Delete("/addresses/{addressID}", userHandler.DeleteAddress)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireAuth)
			admin.Use(authMW.RequireAdmin)
			admin.Get("/coupons", couponHandler.List)
			admin.Post("/coupons", couponHandler.Create)
			admin.Put("/coupons/{couponID}", couponHandler.Update)
			admin.Delete("/coupons/{couponID}", couponHandler.Delete)
			admin.Post("/coupons/preview", couponHandler.Preview)
			admin.Get("/orders", orderHandler.AdminList)
			admin.Get("/orders/{orderID}", orderHandler.AdminGet)
			admin.Patch("/orders/{orderID}/status", orderHandler.AdminSetStatus)
			admin.Get("/analytics/sales", analyticsHandler.Sales)
			admin.Get("/analytics/top-products", analyticsHandler.TopProducts)
			admin.Get("/analytics/overview", analyticsHandler.Overview)
		})
	})

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go relayOutbox(relayCtx, bus, logger)
	go sweepGuestCarts(relayCtx, cart.Janitor{Carts: carts, TTL: cfg.CartTTL}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// relayOutbox delivers events written transactionally during checkout.
func relayOutbox(ctx context.Context, bus *events.Bus, logger zerolog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := bus.Relay(ctx, 50); err != nil {
				logger.Error().Err(err).Msg("relay outbox events")
			}
		}
	}
}

// sweepGuestCarts periodically expires abandoned guest carts per CART_TTL.
func sweepGuestCarts(ctx context.Context, janitor cart.Janitor, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := janitor.Sweep(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("sweep guest carts")
				continue
			}
			if n > 0 {
				logger.Info().Int64("carts", n).Msg("expired abandoned guest carts")
			}
		}
	}
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
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
