package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"movie-membership/internal/config"
	"movie-membership/internal/database"
	httpapi "movie-membership/internal/http"
	"movie-membership/internal/infrastructure/kafka"
	"movie-membership/internal/infrastructure/metrics"
	"movie-membership/internal/infrastructure/momo"
	"movie-membership/internal/logger"
	"movie-membership/internal/repo"
	"movie-membership/internal/service"
	"movie-membership/internal/worker"
)

func serveCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the stale order sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func runServe(autoMigrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.DB.DSN())
	if err != nil {
		return err
	}
	dbService := database.New(db)
	defer dbService.Close()

	if autoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(reg)

	events := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer events.Close()

	orderRepo := repo.NewOrderRepo(db)
	planRepo := repo.NewPlanRepo(db)
	membershipRepo := repo.NewMembershipRepo(db)
	tx := database.NewTransactor(db)
	gateway := momo.NewClient(cfg.Momo.Gateway())

	membershipService := service.NewMembershipService(planRepo, membershipRepo, log)
	resolver := service.NewResolver(tx, orderRepo, membershipService, events, paymentMetrics, log)
	orderService := service.NewOrderService(tx, orderRepo, planRepo, gateway, resolver, service.CheckoutConfig{
		PartnerCode: cfg.Momo.PartnerCode,
		RequestType: cfg.Momo.RequestType,
		RedirectURL: cfg.Momo.RedirectURL,
		IPNURL:      cfg.Momo.IPNURL,
	}, events, paymentMetrics, log)
	callbackService := service.NewCallbackService(orderRepo, gateway, resolver, service.VerifyConfig{
		AccessKey:     cfg.Momo.AccessKey,
		SecretKey:     cfg.Momo.SecretKey,
		QueryOnReturn: cfg.Momo.QueryOnReturn,
	}, paymentMetrics, log)

	router := httpapi.NewRouter(
		httpapi.RouterConfig{CORSOrigin: cfg.App.CORSOrigin, JWTSecret: cfg.Auth.JWTSecret},
		httpapi.Handlers{
			Momo:  httpapi.NewMomoHandler(orderService, callbackService, log),
			User:  httpapi.NewUserHandler(orderService, membershipService, log),
			Plans: httpapi.NewPlanHandler(planRepo, log),
		},
		dbService, reg, log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Reconcile.Interval > 0 {
		sweeper := worker.NewReconciliationWorker(orderRepo, callbackService, paymentMetrics, log,
			cfg.Reconcile.Interval, cfg.Reconcile.StaleAfter, cfg.Reconcile.BatchSize)
		go sweeper.Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
