package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tbeaudouin05/stripe-storefront/api/bootstrap"
	"github.com/tbeaudouin05/stripe-storefront/api/config"
	"github.com/tbeaudouin05/stripe-storefront/api/grpcserver"
	"github.com/tbeaudouin05/stripe-storefront/api/logging"
	"github.com/tbeaudouin05/stripe-storefront/api/router"
	"github.com/tbeaudouin05/stripe-storefront/api/telemetry"
)

const serviceName = "stripe-storefront"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	config.AppConfig = cfg
	logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "err", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracer shutdown", "err", err)
		}
	}()

	if err := bootstrap.Ensure(); err != nil {
		return err
	}
	defer bootstrap.Get().Close()

	grpcSrv, health := grpcserver.New()
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("grpc server listening", "addr", lis.Addr().String())
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		slog.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grpcserver.SetServing(health, true)

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		grpcserver.SetServing(health, false)
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		grpcSrv.GracefulStop()
		return err
	})
	return g.Wait()
}
