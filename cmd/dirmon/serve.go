package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	grpcadapter "github.com/ajkula/dirmon/adapter/inbound/grpc"
	"github.com/ajkula/dirmon/adapter/inbound/rest"
	"github.com/ajkula/dirmon/adapter/inbound/websocket"
	"github.com/ajkula/dirmon/adapter/outbound/backend"
	"github.com/ajkula/dirmon/adapter/outbound/crypto"
	"github.com/ajkula/dirmon/adapter/outbound/logging"
	"github.com/ajkula/dirmon/adapter/outbound/machineid"
	"github.com/ajkula/dirmon/adapter/outbound/metrics"
	"github.com/ajkula/dirmon/config"
	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/inbound"
	"github.com/ajkula/dirmon/domain/port/outbound"
	"github.com/ajkula/dirmon/domain/service"
)

const shutdownTimeout = 5 * time.Second

type serveCmd struct {
	Config string `short:"c" default:"dirmon.yaml" help:"Path to configuration file"`
	Reload bool   `default:"true" negatable:"" help:"Apply changes to the configuration file's watches and log level"`
}

func (c *serveCmd) Run() error {
	cfg, err := config.LoadConfig(c.Config)
	if err != nil {
		return err
	}

	// the logger rewrites its level fields on reload, the API reads cfg
	logCfg := *cfg
	logger, err := logging.NewSlogAdapter(&logCfg)
	if err != nil {
		return err
	}
	defer logger.Shutdown()

	logger.Info("Starting dirmon", "version", version, "config", c.Config)

	b, err := backend.New(strings.ToLower(cfg.Monitor.Backend), backend.Options{
		ReadBufferSize:  cfg.Monitor.ReadBufferSize,
		EventBufferSize: uint(cfg.Monitor.EventBufferSize),
	})
	if err != nil {
		return err
	}

	host, err := machineid.Resolve(cfg.General.NodeID).GetMachineID()
	if err != nil {
		logger.Warn("Cannot read machine id, using hostname", "error", err)
		host, _ = os.Hostname()
	}

	var recorder outbound.MetricsRecorder = outbound.NopMetrics{}
	var prom *metrics.PrometheusRecorder
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheusRecorder()
		recorder = prom
	}

	stream := websocket.NewHandler(host, logger)

	// set before the first watch, so before OnError can run
	var stats *service.StatsServiceImpl
	var health *grpcadapter.Server
	monitor := service.NewMonitorService(b, service.MonitorOptions{
		Logger:  logger,
		Metrics: recorder,
		OnError: func(err error) {
			logger.Error("Event loop stopped", "backend", b.Name(), "error", err)
			stats.RecordLoopFailure(b.Name(), err)
			if health != nil {
				health.UpdateStatus()
			}
		},
	})
	stats = service.NewStatsService(monitor, service.StatsOptions{Logger: logger})
	defer stats.Stop()

	sink := model.ChainCallbacks(stats.TrackEvent, stream.Publish)

	if cfg.GRPC.Enabled {
		health = grpcadapter.NewServer(monitor, logger)
		if err := health.Start(fmt.Sprintf("%s:%d", cfg.GRPC.Address, cfg.GRPC.Port)); err != nil {
			monitor.Close()
			return err
		}
		defer health.Stop()
	}

	settings, err := cfg.MonitorSettings()
	if err != nil {
		monitor.Close()
		return err
	}

	watcher, err := service.NewConfigWatcherService(monitor, c.Config, config.SettingsLoader(c.Config), sink,
		service.ConfigWatcherOptions{Logger: logger, Levels: logger})
	if err != nil {
		monitor.Close()
		return err
	}
	if err := watcher.Start(settings, c.Reload); err != nil {
		logger.Warn("Cannot follow configuration file, reload disabled", "error", err)
		if err := watcher.Start(settings, false); err != nil {
			monitor.Close()
			return err
		}
	}

	var server *http.Server
	serverErr := make(chan error, 1)

	if cfg.HTTP.Enabled {
		server, err = newHTTPServer(cfg, logger, monitor, stream, sink, stats, prom)
		if err != nil {
			monitor.Close()
			return err
		}

		go func() {
			logger.Info("HTTP server listening", "address", server.Addr, "tls", cfg.HTTP.TLS)
			var err error
			if cfg.HTTP.TLS {
				err = server.ListenAndServeTLS(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("dirmon started", "backend", b.Name(), "host", host, "watches", len(monitor.Watches()))

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", "signal", sig.String())
	case runErr = <-serverErr:
		logger.Error("HTTP server error", "error", runErr)
	}

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("HTTP server shutdown", "error", err)
		}
		cancel()
	}

	if health != nil {
		health.Stop()
	}
	stream.Cleanup()

	if err := watcher.Stop(); err != nil {
		logger.Warn("Config watcher stop", "error", err)
	}
	if err := monitor.Close(); err != nil {
		logger.Error("Monitor close", "error", err)
	}

	logger.Info("Shutdown complete")
	return runErr
}

func newHTTPServer(
	cfg *config.Config,
	logger outbound.Logger,
	monitor *service.MonitorService,
	stream *websocket.Handler,
	sink model.Callback,
	stats inbound.StatsService,
	prom *metrics.PrometheusRecorder,
) (*http.Server, error) {
	cryptoService := crypto.NewCryptoService()

	if err := config.EnsureTLSCertificates(cfg, cryptoService, logger); err != nil {
		return nil, err
	}

	opts := rest.RouterOptions{
		Stream: stream.HandleConnection,
	}

	// the middleware never consults authService while authentication is disabled
	var authService inbound.AuthService
	if cfg.Security.EnableAuthentication {
		salt, err := cfg.AdminSalt()
		if err != nil {
			return nil, err
		}
		authService = service.NewAuthService(service.AdminCredentials{
			Username:     cfg.Security.AdminUsername,
			PasswordHash: cfg.Security.AdminPasswordHash,
			Salt:         salt,
		}, cryptoService, logger, cfg.HTTP.JWT.Secret, cfg.HTTP.JWT.ExpirationMinutes)
		opts.Auth = rest.NewAuthHandler(authService, logger)
	}

	if prom != nil {
		opts.MetricsPath = cfg.Metrics.Path
		opts.Metrics = prom.Handler()
	}

	router := rest.NewRouter(
		rest.NewHandler(monitor, sink, stats, cfg, logger),
		rest.NewAuthMiddleware(authService, logger, cfg),
		opts,
	)

	// no WriteTimeout: the event stream is long lived
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}
