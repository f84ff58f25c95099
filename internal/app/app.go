package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/identity"
	idemsvc "github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/order"
	"github.com/vladislavdragonenkov/pos/internal/service/outbox"
	"github.com/vladislavdragonenkov/pos/internal/service/rest"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает сервис и обслуживает запросы до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	orderMetrics := metrics.NewOrderMetrics()

	orderSvc := order.NewService(
		deps.Orders,
		deps.Products,
		deps.Outbox,
		logger.WithField("layer", "order"),
	).WithMetrics(orderMetrics)
	catalogSvc := catalog.NewService(deps.Products, logger.WithField("layer", "catalog"))
	identityProvider := identity.NewJWTProvider(cfg.JWTSecret, cfg.Roles, logger.WithField("layer", "identity"))

	server := rest.NewServer(
		orderSvc,
		catalogSvc,
		identityProvider,
		deps.Idempotency,
		logger.WithField("layer", "rest"),
	).WithMetrics(orderMetrics)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewStoreChecker(deps.Store))
	}
	if deps.Producer != nil {
		healthHandler.RegisterChecker("kafka", healthcheck.NewFuncChecker("kafka", deps.Producer.CheckBrokers))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	startWorkers(ctx, deps, logger)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(httpSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startWorkers запускает фоновые worker'ы: публикацию outbox при
// настроенном Kafka и чистку истёкших idempotency-ключей.
func startWorkers(ctx context.Context, deps *Dependencies, logger *log.Entry) {
	if deps.Producer != nil {
		publisher := kafka.NewOutboxPublisher(deps.Producer, kafka.TopicOrderEvents)
		dlqPublisher := kafka.NewOutboxPublisher(deps.Producer, kafka.TopicDeadLetterQueue)

		worker := outbox.NewWorker(
			deps.Outbox,
			publisher,
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithDLQPublisher(dlqPublisher),
		)
		go worker.Run(ctx)
	}

	sweeper := idemsvc.NewSweeper(
		deps.Idempotency,
		idemsvc.WithLogger(logger.WithField("layer", "idempotency")),
	)
	go sweeper.Run(ctx)
}

// startMetricsServer запускает HTTP-обработчики /metrics и health-endpoint'ы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
