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

	"checkscan/internal/audit"
	"checkscan/internal/check"
	"checkscan/internal/history"
	"checkscan/internal/ocr"
	"checkscan/internal/ocr/tesseract"
	"checkscan/internal/pipeline"
	"checkscan/internal/platform/config"
	"checkscan/internal/platform/httpserver"
	"checkscan/internal/platform/logger"
	"checkscan/internal/platform/metrics"
	"checkscan/internal/platform/postgres"
	"checkscan/internal/platform/redis"
	"checkscan/internal/scan"
	"checkscan/internal/signing"
	"checkscan/internal/station"
	"checkscan/internal/submission"
	httptransport "checkscan/internal/transport/http"
)

// main wires the pipeline and serves the local API until SIGINT/SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	srv := httpserver.New(cfg.Server.Addr, app.router)
	go func() {
		log.Info("starting checkscan", "addr", cfg.Server.Addr, "scan_root", cfg.Scan.StoragePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

type app struct {
	router  http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	m := metrics.New()

	holder := signing.NewHolder()
	a.closers = append(a.closers, holder.Clear)

	identity := station.NewResolver(cfg.Remote.IPEchoURL, station.WithLogger(log)).Resolve(ctx)
	log.Info("station identity resolved", "app_id", identity.AppID, "ip", identity.IP)

	client, err := submission.NewClient(cfg.Remote.ScannedItemsURL, cfg.Remote.RevertScannedItemsURL,
		submission.WithHTTPClient(&http.Client{Timeout: cfg.Remote.RequestTimeout}),
		submission.WithClientLogger(log),
		submission.WithIdentity(identity),
		submission.WithPageSize(cfg.Remote.PageItems),
	)
	if err != nil {
		return nil, err
	}
	coordinator, err := submission.New(client, holder,
		submission.WithLogger(log),
		submission.WithMetrics(m),
		submission.WithConcurrency(cfg.Remote.Concurrency),
	)
	if err != nil {
		return nil, err
	}

	var extractor ocr.Extractor = ocr.NewTextFile(log)
	if cfg.OCR.Mode == "tesseract" {
		extractor = tesseract.New(
			tesseract.WithLanguage(cfg.OCR.Language),
			tesseract.WithDataPath(cfg.OCR.DataPath),
			tesseract.WithLogger(log),
		)
	}
	grouper := scan.NewGrouper(scan.WithLogger(log), scan.WithMetrics(m))
	builder := check.NewBuilder(extractor,
		check.WithLogger(log),
		check.WithMetrics(m),
		check.WithWorkers(cfg.Scan.Workers),
	)

	var handlerOpts []httptransport.Option
	handlerOpts = append(handlerOpts, httptransport.WithLogger(log))

	hist, err := openHistory(ctx, cfg, a, &handlerOpts)
	if err != nil {
		return nil, err
	}
	publisher, err := openAudit(ctx, cfg, log, a, &handlerOpts)
	if err != nil {
		return nil, err
	}

	handlerOpts = append(handlerOpts, httptransport.WithAuditLog(publisher))

	svc, err := pipeline.New(cfg.Scan.StoragePath, grouper, builder, coordinator,
		pipeline.WithLogger(log),
		pipeline.WithHistory(hist),
		pipeline.WithAuditPublisher(publisher),
	)
	if err != nil {
		return nil, err
	}

	h, err := httptransport.New(svc, holder, handlerOpts...)
	if err != nil {
		return nil, err
	}
	a.router = httptransport.NewRouter(h, log, nil)
	return a, nil
}

func openHistory(ctx context.Context, cfg config.Config, a *app, handlerOpts *[]httptransport.Option) (history.Store, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return history.NewMemoryStore(cfg.Redis.HistoryTTL)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	*handlerOpts = append(*handlerOpts, httptransport.WithHealthCheck("redis", client.Health))
	return history.NewRedisStore(client.Client, cfg.Redis.HistoryTTL)
}

func openAudit(ctx context.Context, cfg config.Config, log *slog.Logger, a *app, handlerOpts *[]httptransport.Option) (*audit.Publisher, error) {
	var store audit.Store = audit.NewInMemoryStore()
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, func() { _ = db.Close() })
		pg := audit.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
		*handlerOpts = append(*handlerOpts, httptransport.WithHealthCheck("postgres", db.PingContext))
	}

	opts := []audit.Option{audit.WithLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)
		opts = append(opts, audit.WithSink(sink))
	}
	return audit.NewPublisher(store, opts...)
}
