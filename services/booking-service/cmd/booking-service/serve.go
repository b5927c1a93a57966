package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/agendafacil/libs/grpcx"
	"github.com/md-rashed-zaman/agendafacil/libs/httpx"
	otelx "github.com/md-rashed-zaman/agendafacil/libs/otel"
	"github.com/md-rashed-zaman/agendafacil/libs/runtime"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/idempotency"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/lifecycle"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and gRPC APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(s.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(s.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	d, err := buildDeps(ctx, s, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		return err
	}
	defer d.Close()

	coord := booking.NewCoordinator(d.catalog, d.repo, d.dispatcher, logger, booking.Options{
		Granularity:    s.Granularity,
		MaxOccurrences: s.MaxOccurrences,
	})
	mgr := lifecycle.NewManager(d.repo, d.catalog, d.dispatcher, logger)

	cfg := handlers.Config{
		JWTSecret:   s.JWTSecret,
		Idempotency: idempotency.NewStore(d.cache, idempotency.DefaultTTL),
	}
	if s.RatePerMinute > 0 {
		if d.redis != nil {
			cfg.Limiter = httpx.NewRedisLimiter(d.redis, s.RatePerMinute, time.Minute, s.Service+":ratelimit:")
		} else {
			cfg.Limiter = httpx.NewMemoryLimiter(s.RatePerMinute, time.Minute)
		}
	}
	api := handlers.New(coord, mgr, logger, cfg).Routes()

	mux := runtime.NewBaseMuxWithReady(d.ready...)
	mux.Handle("/api/", api)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: s.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id", "X-User-Id", "X-Role", "X-Company-Id"},
			MaxAge:         10 * time.Minute,
		}),
	)
	httpSrv := &http.Server{
		Addr:              ":" + s.HTTPPort,
		Handler:           otelhttp.NewHandler(httpHandler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpc.NewServer(grpcx.ServerOptions(grpcx.UnaryServerLogInterceptor(logger))...)
	grpcserver.Register(grpcSrv, coord, mgr, logger, s.JWTSecret)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+s.GRPCPort)
		if err != nil {
			return err
		}
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSrv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	err = g.Wait()
	logger.Info("servers stopped")
	return err
}
