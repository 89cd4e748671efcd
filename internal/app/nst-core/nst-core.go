// Package nstcore собирает и запускает основное приложение.
package nstcore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/nadimanwar794-eng/nst-core/internal/cache"
	"github.com/nadimanwar794-eng/nst-core/internal/config"
	"github.com/nadimanwar794-eng/nst-core/internal/lib/jwt"
	"github.com/nadimanwar794-eng/nst-core/internal/metrics"
	"github.com/nadimanwar794-eng/nst-core/internal/migrations"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
	"github.com/nadimanwar794-eng/nst-core/internal/rabbitmq"
	"github.com/nadimanwar794-eng/nst-core/internal/services/content"
	"github.com/nadimanwar794-eng/nst-core/internal/services/milestone"
	"github.com/nadimanwar794-eng/nst-core/internal/services/reconcile"
	"github.com/nadimanwar794-eng/nst-core/internal/services/redeem"
	"github.com/nadimanwar794-eng/nst-core/internal/services/spin"
	"github.com/nadimanwar794-eng/nst-core/internal/services/wallet"
	"github.com/nadimanwar794-eng/nst-core/internal/storage"
	"github.com/nadimanwar794-eng/nst-core/internal/store"
)

type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *storage.Storage
	amqpConn   *amqp.Connection
	reconciler *reconcile.Service
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	amqpConn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	channel, err := rabbitmq.SetupChannel(amqpConn)
	if err != nil {
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	dualStore := store.New(logger, cacheRedis, db, channel, m)

	walletService := wallet.New(logger, dualStore, m)
	settingsHolder := reconcile.NewSettingsHolder(models.DefaultSettings())
	engine := milestone.New(logger, dualStore, walletService, settingsHolder, m)

	reconciler := reconcile.New(logger, dualStore, engine, settingsHolder)
	if err = reconciler.Start(ctx); err != nil {
		return nil, err
	}

	redeemService := redeem.New(logger, dualStore, walletService, m)
	spinService := spin.New(logger, walletService, settingsHolder)
	fetcher := content.NewHTTPFetcher(cfg.ContentFetch)
	contentService := content.New(logger, dualStore, walletService, fetcher, settingsHolder, m)

	jwtMaker := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()

	RegisterRoutes(ctx, router, logger, &Services{
		Store:      dualStore,
		Wallet:     walletService,
		Engine:     engine,
		Reconciler: reconciler,
		Redeem:     redeemService,
		Spin:       spinService,
		Content:    contentService,
		JWTMaker:   jwtMaker,
		Settings:   settingsHolder,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		amqpConn:   amqpConn,
		reconciler: reconciler,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.reconciler.Close()
		if cerr := a.amqpConn.Close(); cerr != nil {
			a.logger.Error("failed to close amqp connection", slog.Any("err", cerr))
		}
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Error("failed to close database", slog.Any("err", cerr))
		}
		return err
	}
}
