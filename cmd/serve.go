package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/platform-tracker/internal/httpapi"
	"github.com/Leganyst/platform-tracker/internal/metrics"
	"github.com/Leganyst/platform-tracker/internal/poller"
	"github.com/Leganyst/platform-tracker/internal/service"
	"github.com/Leganyst/platform-tracker/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the feed and serve the HTTP and gRPC APIs",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(verbose)
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

		a, err := openApp(log)
		if err != nil {
			log.Error("startup failed", "error", err)
			return err
		}
		defer a.close()

		return serve(cmd.Context(), a)
	},
}

func serve(ctx context.Context, a *app) error {
	log := a.log

	var fetcher poller.Fetcher
	if a.cfg.UpstreamURL != "" {
		client, err := upstream.NewClient(upstream.Config{
			URL:     a.cfg.UpstreamURL,
			APIKey:  a.cfg.UpstreamAPIKey,
			Timeout: a.cfg.UpstreamTimeout,
			Retries: a.cfg.UpstreamRetries,
		})
		if err != nil {
			return err
		}
		fetcher = client
	} else {
		log.Warn("UPSTREAM_URL is not set, polling disabled")
	}

	var ingester poller.Ingester
	if fetcher != nil {
		ingester = a.ingest
	}
	sched, err := poller.New(poller.Config{
		PollSchedule:  a.cfg.PollSchedule,
		SweepSchedule: a.cfg.SweepSchedule,
		Location:      a.cfg.Location,
		PollOnStart:   true,
		Clock:         a.clock,
	}, fetcher, ingester, a.retention, log)
	if err != nil {
		return err
	}

	httpSrv := httpapi.New(a.history, a.retention, log)

	grpcSrv := grpc.NewServer()
	service.RegisterHistoryServer(grpcSrv, service.NewHistoryServer(a.history))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(service.HistoryServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcSrv)

	httpLis, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTPAddr, err)
	}
	lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen %s: %w", a.cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		if err := httpSrv.Serve(httpLis); err != nil {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc server listening", "addr", a.cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		healthSrv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		// Serve may not have started yet; a closed listener still makes it return.
		_ = httpLis.Close()
		grpcSrv.GracefulStop()
		return nil
	})

	err = g.Wait()
	log.Info("stopped")
	return err
}
