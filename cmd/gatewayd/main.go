package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/naru-gw/gatewayd/internal/admin"
	"github.com/naru-gw/gatewayd/internal/config"
	"github.com/naru-gw/gatewayd/internal/dispatch"
	"github.com/naru-gw/gatewayd/internal/logging"
	"github.com/naru-gw/gatewayd/internal/metrics"
	"github.com/naru-gw/gatewayd/internal/middleware"
	"github.com/naru-gw/gatewayd/internal/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// containerWatcherBackground is the only background-service name the boot
// config's "backgrounds" list currently recognizes. Listing it calls
// Store.EnsureContainerWatcher, which is a no-op when no docker client is
// configured; when one is, Store.Run has already registered the watcher, so
// the entry adds nothing beyond that.
const containerWatcherBackground = "container_background_service"

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gatewayd %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("configuration is valid")
		os.Exit(0)
	}

	log, closer, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	logging.SetGlobal(log)
	defer log.Sync()

	log.Info("starting gatewayd", zap.String("version", version), zap.String("config", *configPath))

	if err := run(cfg, log); err != nil {
		log.Error("fatal error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	dockerClient, err := newDockerClient(log)
	if err != nil {
		log.Warn("docker client unavailable, container discovery disabled", zap.Error(err))
	}

	var opts []store.Option
	if dockerClient != nil {
		opts = append(opts, store.WithDockerClient(dockerClient))
	}
	s := store.New(log, opts...)

	collector := metrics.NewCollector()
	s.SetMetrics(collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	ingestion := admin.New(s, log)
	bootCtx, bootCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := bootstrap(bootCtx, ingestion, s, cfg, log); err != nil {
		bootCancel()
		return fmt.Errorf("applying boot configuration: %w", err)
	}
	bootCancel()

	dispatcher := dispatch.New(s.Routes, s.Applications, nil, log)
	dispatcher.SetMetrics(collector)

	dataHandler := middleware.NewBuilderWithCap(3).
		Use(middleware.Recovery()).
		Use(middleware.RequestID()).
		Use(middleware.LoggingWithConfig(middleware.LoggingConfig{Logger: log})).
		Handler(dispatcher)

	adminServer := admin.NewServer(ingestion, collector, log)
	adminHandler := middleware.NewBuilderWithCap(2).
		Use(middleware.Recovery()).
		Use(middleware.RequestID()).
		Handler(adminServer)

	dataSrv := &http.Server{Addr: cfg.Listen.Address, Handler: dataHandler}
	adminSrv := &http.Server{Addr: cfg.AdminListen, Handler: adminHandler}

	errCh := make(chan error, 2)
	go func() {
		log.Info("data-plane listener starting", zap.String("address", cfg.Listen.Address))
		if err := dataSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("data-plane listener: %w", err)
		}
	}()
	go func() {
		log.Info("admin listener starting", zap.String("address", cfg.AdminListen))
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin listener: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		cancel()
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	dataSrv.Shutdown(shutdownCtx)
	adminSrv.Shutdown(shutdownCtx)

	log.Info("gatewayd stopped")
	return nil
}

// newDockerClient attempts to build a docker API client from the process
// environment. A nil, non-error return is not possible; callers treat a
// non-nil error as "container discovery disabled" rather than fatal, since
// the gateway is useful with only static-discovery routes.
func newDockerClient(log *zap.Logger) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, err
	}
	log.Info("docker client connected")
	return cli, nil
}

// bootstrap applies the configuration file's backgrounds, applications, and
// load_balancers sections as a sequence of admin commands, per spec.md's
// "configuration file... applied as a sequence of admin commands" contract.
func bootstrap(ctx context.Context, ingestion *admin.Ingestion, s *store.Store, cfg *config.Config, log *zap.Logger) error {
	for _, name := range cfg.Backgrounds {
		switch name {
		case containerWatcherBackground:
			s.EnsureContainerWatcher()
		default:
			log.Warn("ignoring unknown background service in config", zap.String("name", name))
		}
	}

	for _, app := range cfg.Applications {
		if err := ingestion.AddApplication(app.AppID, app.LimitIntervalSeconds, app.Limit); err != nil {
			return fmt.Errorf("applications[%s]: %w", app.AppID, err)
		}
	}

	for _, lb := range cfg.LoadBalancers {
		req := admin.AddRouteRequest{
			Name: lb.Name,
			MatchRule: admin.MatchRule{
				Type:  lb.MatchRule.Type,
				Value: lb.MatchRule.Value,
			},
			ServiceDiscovery: lb.ServiceDiscovery,
			StaticUpstream:   lb.StaticUpstream,
		}
		if lb.Rewrite != nil {
			req.Rewrite = &admin.Rewrite{Regex: lb.Rewrite.Regex, Replacement: lb.Rewrite.Replacement}
		}
		if err := ingestion.AddRoute(ctx, req); err != nil {
			return fmt.Errorf("load_balancers[%s]: %w", lb.Name, err)
		}
	}

	return nil
}
