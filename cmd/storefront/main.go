package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/palme-foods/storefront/internal/cart"
	"github.com/palme-foods/storefront/internal/gateway"
	"github.com/palme-foods/storefront/internal/handlers"
	"github.com/palme-foods/storefront/internal/payments"
	"github.com/palme-foods/storefront/internal/platform/config"
	"github.com/palme-foods/storefront/internal/platform/observability"
	"github.com/palme-foods/storefront/internal/services"
)

const gatewayRefreshInterval = 5 * time.Minute

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(config.WithEnvFile(".env"))
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	eventLogger := observability.EventLogger(logger.Named("gateway"))

	apiClient, err := gateway.NewClient(gateway.ClientDeps{
		BaseURL: cfg.Commerce.BaseURL,
		Timeout: cfg.Commerce.Timeout,
		Logger:  eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise commerce client", zap.Error(err))
	}

	settingsClient, err := gateway.NewSettingsClient(gateway.SettingsClientDeps{Client: apiClient})
	if err != nil {
		logger.Fatal("failed to initialise settings client", zap.Error(err))
	}
	locationsClient, err := gateway.NewLocationsClient(gateway.LocationsClientDeps{Client: apiClient})
	if err != nil {
		logger.Fatal("failed to initialise locations client", zap.Error(err))
	}
	couponClient, err := gateway.NewCouponClient(gateway.CouponClientDeps{Client: apiClient})
	if err != nil {
		logger.Fatal("failed to initialise coupon client", zap.Error(err))
	}
	orderClient, err := gateway.NewOrderClient(gateway.OrderClientDeps{Client: apiClient})
	if err != nil {
		logger.Fatal("failed to initialise order client", zap.Error(err))
	}
	authClient, err := gateway.NewAuthClient(gateway.AuthClientDeps{Client: apiClient})
	if err != nil {
		logger.Fatal("failed to initialise auth client", zap.Error(err))
	}

	// The store serves fallback delivery pricing until the first refresh
	// lands, so a slow commerce API must not block startup.
	seedCtx, seedCancel := context.WithTimeout(ctx, cfg.Commerce.Timeout)
	if _, err := settingsClient.Refresh(seedCtx); err != nil {
		logger.Warn("initial settings refresh failed, serving fallbacks", zap.Error(err))
	}
	if _, err := locationsClient.Refresh(seedCtx); err != nil {
		logger.Warn("initial locations refresh failed", zap.Error(err))
	}
	seedCancel()

	refreshCtx, refreshCancel := context.WithCancel(context.Background())
	var refreshWG sync.WaitGroup
	refreshTicker := time.NewTicker(gatewayRefreshInterval)
	refreshWG.Add(1)
	go func() {
		defer refreshWG.Done()
		refreshLogger := logger.Named("refresh")
		for {
			select {
			case <-refreshTicker.C:
				runCtx, cancel := context.WithTimeout(refreshCtx, cfg.Commerce.Timeout)
				if _, err := settingsClient.Refresh(runCtx); err != nil && !errors.Is(err, gateway.ErrGatewayStale) {
					refreshLogger.Warn("settings refresh error", zap.Error(err))
				}
				if _, err := locationsClient.Refresh(runCtx); err != nil && !errors.Is(err, gateway.ErrGatewayStale) {
					refreshLogger.Warn("locations refresh error", zap.Error(err))
				}
				cancel()
			case <-refreshCtx.Done():
				return
			}
		}
	}()

	providers := make(map[string]payments.Provider)
	if key := strings.TrimSpace(cfg.Payments.PaystackSecretKey); key != "" {
		paystackProvider, err := payments.NewPaystackProvider(payments.PaystackProviderConfig{
			SecretKey: key,
			BaseURL:   cfg.Payments.PaystackBaseURL,
			Logger:    observability.EventLogger(logger.Named("paystack")),
		})
		if err != nil {
			logger.Fatal("failed to initialise paystack provider", zap.Error(err))
		}
		providers["paystack"] = paystackProvider
	}
	if key := strings.TrimSpace(cfg.Payments.StripeAPIKey); key != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: key,
			Logger: observability.EventLogger(logger.Named("stripe")),
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		providers["stripe"] = stripeProvider
	}
	if len(providers) == 0 {
		logger.Fatal("no payment provider configured; set STOREFRONT_PAYSTACK_SECRET_KEY or STOREFRONT_STRIPE_API_KEY")
	}

	paymentManager, err := payments.NewManager(providers,
		payments.WithDefaultProvider(cfg.Payments.DefaultProvider),
	)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	carts := cart.NewStore(cart.StoreDeps{})

	couponResolver, err := services.NewCouponResolver(services.CouponResolverDeps{
		Verifier: couponClient,
		Logger:   observability.EventLogger(logger.Named("coupons")),
	})
	if err != nil {
		logger.Fatal("failed to initialise coupon resolver", zap.Error(err))
	}

	checkoutEngine, err := services.NewCheckoutEngine(services.CheckoutEngineDeps{
		Carts:    carts,
		Settings: settingsClient,
		Orders:   orderClient,
		Payments: paymentManager,
		Currency: cfg.Commerce.Currency,
		Logger:   observability.EventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout engine", zap.Error(err))
	}

	cartHandlers := handlers.NewCartHandlers(carts, locationsClient)
	checkoutHandlers, err := handlers.NewCheckoutHandlers(handlers.CheckoutHandlersDeps{
		Engine:            checkoutEngine,
		Coupons:           couponResolver,
		Carts:             carts,
		Settings:          settingsClient,
		PaystackPublicKey: cfg.Payments.PaystackPublicKey,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout handlers", zap.Error(err))
	}
	authHandlers := handlers.NewAuthHandlers(authClient)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("commerce_api", func(ctx context.Context) error {
			_, err := settingsClient.Refresh(ctx)
			if errors.Is(err, gateway.ErrGatewayStale) {
				return nil
			}
			return err
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithAPIMiddlewares(
			handlers.MaintenanceMiddleware(settingsClient),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithAuthRoutes(authHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("storefront listening", zap.String("addr", server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
		}
	}

	refreshTicker.Stop()
	refreshCancel()
	refreshWG.Wait()
	logger.Info("storefront stopped")
}
