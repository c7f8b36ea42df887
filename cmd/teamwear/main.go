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

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanko-field/teamwear/internal/handlers"
	"github.com/hanko-field/teamwear/internal/i18n"
	"github.com/hanko-field/teamwear/internal/platform/config"
	"github.com/hanko-field/teamwear/internal/platform/jobs"
	"github.com/hanko-field/teamwear/internal/platform/money"
	"github.com/hanko-field/teamwear/internal/platform/observability"
	"github.com/hanko-field/teamwear/internal/services"
	"github.com/hanko-field/teamwear/internal/storefront"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			fmt.Fprintf(os.Stderr, "invalid configuration: %s\n", strings.Join(validation.Fields(), ", "))
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("teamwear")
	ctx = observability.WithLogger(ctx, logger)

	catalog, err := config.LoadCatalog(ctx, cfg.Catalog.Path, cfg.Widget)
	if err != nil {
		logger.Fatal("failed to load design catalogue", zap.String("path", cfg.Catalog.Path), zap.Error(err))
	}

	designs := resolveDesigns(ctx, catalog.Designs)

	bundle, err := i18n.Load(catalog.Translations)
	if err != nil {
		logger.Fatal("failed to load translations", zap.Error(err))
	}
	formatter := money.NewFormatter(cfg.Widget.MoneyFormat)

	client, err := storefront.NewClient(cfg.Storefront.BaseURL,
		storefront.WithTimeout(cfg.Storefront.Timeout),
		storefront.WithLogger(logger.Named("storefront")),
	)
	if err != nil {
		logger.Fatal("failed to initialise storefront client", zap.Error(err))
	}
	products, err := storefront.NewProductCache(client,
		storefront.WithCacheLogger(logger.Named("storefront")),
		storefront.WithMeter(otel.Meter("github.com/hanko-field/teamwear/internal/storefront")),
	)
	if err != nil {
		logger.Fatal("failed to initialise product cache", zap.Error(err))
	}
	if !cfg.Storefront.SkipPrefetch {
		prefetchCtx, cancel := context.WithTimeout(ctx, 2*cfg.Storefront.Timeout)
		if err := products.Prefetch(prefetchCtx, catalog.Handles(), cfg.Storefront.PrefetchWorkers); err != nil {
			// Designs that failed here are fetched again on first selection.
			logger.Warn("product prefetch incomplete", zap.Error(err))
		}
		cancel()
		logger.Info("product cache warmed", zap.Int("products", products.Len()), zap.Int("designs", len(designs)))
	}

	listeners := services.CartListeners{services.LogCartListener{Logger: logger.Named("cart")}}
	if cfg.PubSub.Enabled() {
		pubsubClient, err := newPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		publisher, err := jobs.NewPubSubCartPublisher(pubsubClient.Topic(cfg.PubSub.Topic))
		if err != nil {
			logger.Fatal("failed to initialise cart publisher", zap.Error(err))
		}
		defer publisher.Stop()
		listeners = append(listeners, publisher)
		logger.Info("cart updates published", zap.String("topic", cfg.PubSub.Topic))
	}

	sizes := sizeVocabulary(catalog)
	widgetLogger := logger.Named("widget")
	factory := func(widgetID string) (*services.Widget, error) {
		return services.NewWidget(services.WidgetDeps{
			ID:              widgetID,
			Designs:         designs,
			Products:        products,
			Cart:            client,
			Listener:        listeners,
			Copy:            bundle,
			Formatter:       formatter,
			AddOnPrices:     catalog.AddOnPrices,
			Swatches:        catalog.Swatches,
			Sizes:           &sizes,
			QuantityMode:    services.QuantityMode(cfg.Widget.QuantityMode),
			QuantityOptions: catalog.QuantityOptions,
			DefaultQuantity: cfg.Widget.DefaultQuantity,
			MaxQuantity:     cfg.Widget.MaxQuantity,
			Limits: services.PropertyLimits{
				MaxCount:       cfg.Widget.MaxProperties,
				MaxValueLength: cfg.Widget.MaxPropertyLength,
			},
			MessageTTL: cfg.Widget.MessageTTL,
			ResetDelay: cfg.Widget.ResetDelay,
			Logger:     observability.EventLogger(widgetLogger),
		})
	}
	if _, err := factory("startup-check"); err != nil {
		logger.Fatal("invalid widget configuration", zap.Error(err))
	}

	sessions, err := handlers.NewSessionRegistry(factory, handlers.SessionOptions{
		IdleTTL:     cfg.Sessions.IdleTTL,
		MaxSessions: cfg.Sessions.MaxSessions,
		Logger:      logger.Named("sessions"),
	})
	if err != nil {
		logger.Fatal("failed to initialise session registry", zap.Error(err))
	}
	defer sessions.Close()

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		sessions.Run(sweepCtx, cfg.Sessions.SweepInterval)
	}()

	healthHandlers := handlers.NewHealthHandlers(map[string]handlers.ReadinessCheck{
		"catalog": func(context.Context) error {
			if len(designs) == 0 {
				return errors.New("no designs configured")
			}
			return nil
		},
		"storefront": func(context.Context) error {
			if !cfg.Storefront.SkipPrefetch && products.Len() == 0 {
				return errors.New("no products cached")
			}
			return nil
		},
	})

	httpLogger := logger.Named("http")
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(httpLogger),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(),
	}

	designHandlers := handlers.NewDesignHandlers(designs, catalog.QuantityOptions, formatter, bundle)
	widgetHandlers := handlers.NewWidgetHandlers(sessions, bundle, cfg.Server.MaxBodyBytes)

	var opts []handlers.Option
	opts = append(opts, handlers.WithMiddlewares(middlewares...))
	opts = append(opts, handlers.WithHealthHandlers(healthHandlers))
	opts = append(opts, handlers.WithDesignRoutes(designHandlers.Routes))
	opts = append(opts, handlers.WithWidgetRoutes(widgetHandlers.Routes))

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := httpLogger.With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("teamwear configurator listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return pubsub.NewClient(ctx, cfg.ProjectID, opts...)
}
