package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/core/service"
	"github.com/yndnr/snapql/internal/infra/buildinfo"
	"github.com/yndnr/snapql/internal/infra/confloader"
	"github.com/yndnr/snapql/internal/infra/shutdown"
	"github.com/yndnr/snapql/internal/infra/tlsroots"
	"github.com/yndnr/snapql/internal/server/config"
	"github.com/yndnr/snapql/internal/server/httpserver"
	"github.com/yndnr/snapql/internal/server/httpserver/handler"
	"github.com/yndnr/snapql/internal/server/wsserver"
	"github.com/yndnr/snapql/internal/storage"
	"github.com/yndnr/snapql/internal/storage/snapshot"
	"github.com/yndnr/snapql/internal/storage/sqlengine"
	"github.com/yndnr/snapql/internal/telemetry/logger"
	"github.com/yndnr/snapql/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		checkOnly   = flag.Bool("check", false, "Validate the configuration and exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("snapql-server %s\n", buildinfo.String())
		return nil
	}

	cfg, loader, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkOnly {
		fmt.Println("configuration OK")
		return nil
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := log.Slog()

	slogLogger.Info("starting snapql-server",
		buildinfo.LogAttrs(),
		"config", *configFile,
		"settings", config.Sanitize(cfg))

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout, slogLogger)
	metrics := metric.NewRegistry()

	cache, closeCache, err := initCache(cfg, metrics, slogLogger)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	if closeCache != nil {
		shutdownHandler.OnShutdown("cache", func(context.Context) error {
			return closeCache()
		})
	}

	lifecycle, err := initLifecycle(cfg, cache, metrics, slogLogger)
	if err != nil {
		return fmt.Errorf("init snapshot: %w", err)
	}
	shutdownHandler.OnShutdown("lifecycle", func(context.Context) error {
		return lifecycle.Close()
	})

	hubCfg := wsserver.DefaultConfig()
	hubCfg.PingInterval = cfg.Server.NotifyPingInterval
	hubCfg.AllowedOrigins = cfg.Server.NotifyAllowedOrigins
	hub := wsserver.NewHub(hubCfg, metrics, slogLogger)
	notifier := service.NewNotifier(lifecycle, hub, 0, metrics, slogLogger)
	hub.SetHandler(notifier)
	shutdownHandler.OnShutdown("notify", func(context.Context) error {
		return hub.Close()
	})

	intercept, err := initHandler(cfg, lifecycle, metrics, slogLogger)
	if err != nil {
		return fmt.Errorf("init handler: %w", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Intercept:          intercept,
		Notify:             hub,
		NotifyPath:         cfg.Server.NotifyPath,
		MetricsPath:        cfg.Server.MetricsPath,
		Metrics:            metrics,
		Logger:             slogLogger,
		AllowList:          cfg.Server.AllowList,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimit:          cfg.Server.RateLimit,
		EnableAudit:        cfg.Server.Audit,
	})
	httpServer := httpserver.New(cfg.Server.Addr, router)

	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(slogLogger))
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}
	shutdownHandler.OnShutdown("watcher", func(context.Context) error {
		return watcher.Stop()
	})
	if path := loader.FilePath(); path != "" {
		path = filepath.Clean(path)
		if err := watcher.Watch(path); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		watcher.OnChange(func(changed string) {
			if changed != path {
				return
			}
			next, err := config.Reload(loader)
			if err != nil {
				slogLogger.Warn("config reload rejected", "error", err)
				return
			}
			logger.SetLevel(next.Log.Level)
			slogLogger.Info("config reloaded", "log_level", next.Log.Level)
		})
	}

	var tlsConfig *tls.Config
	if cfg.Server.TLSCertFile != "" {
		reloader, err := tlsroots.NewReloader(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, slogLogger)
		if err != nil {
			return fmt.Errorf("load TLS certificate: %w", err)
		}
		if err := reloader.WatchWith(watcher); err != nil {
			return fmt.Errorf("watch TLS certificate: %w", err)
		}
		tlsConfig = reloader.ServerConfig()
	}
	watcher.StartAsync()

	ln, err := httpServer.Listen()
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})

	go func() {
		slogLogger.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"tls", tlsConfig != nil)

		if err := serve(httpServer, ln, tlsConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogLogger.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	activateCtx, cancelActivate := context.WithCancel(context.Background())
	shutdownHandler.OnShutdown("activation", func(context.Context) error {
		cancelActivate()
		return nil
	})
	go notifier.Activate(activateCtx)

	slogLogger.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(context.Background()); err != nil {
		slogLogger.Error("shutdown error", "error", err)
		return err
	}

	slogLogger.Info("server stopped gracefully")
	return nil
}

// serve blocks on ln. A non-nil t serves TLS with the reloading
// certificate.
func serve(s *httpserver.Server, ln net.Listener, t *tls.Config) error {
	if t == nil {
		return s.Serve(ln)
	}
	return s.ServeTLSConfig(ln, t)
}

// initCache opens the Badger snapshot cache when enabled. A disabled
// cache yields a nil Cache.
func initCache(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger) (snapshot.Cache, func() error, error) {
	if !cfg.Cache.Enabled {
		return nil, nil, nil
	}

	kv := storage.DefaultKVConfig(cfg.Cache.Dir)
	kv.InMemory = cfg.Cache.InMemory
	kv.TTL = cfg.Cache.TTL
	kv.Badger.GCInterval = cfg.Cache.Badger.GCInterval
	kv.Badger.GCThreshold = cfg.Cache.Badger.GCThreshold
	kv.Badger.CacheSize = cfg.Cache.Badger.CacheSize
	kv.Badger.SyncWrites = cfg.Cache.Badger.SyncWrites

	engine, err := storage.NewBadgerEngine(kv, log)
	if err != nil {
		return nil, nil, err
	}
	engine.RegisterMetrics(metrics.Registerer())
	return engine, engine.Close, nil
}

// initLifecycle builds the fetch → unseal → open chain behind the
// lifecycle manager.
func initLifecycle(cfg *config.ServerConfig, cache snapshot.Cache, metrics *metric.Registry, log *slog.Logger) (*service.Lifecycle, error) {
	fetchCfg := snapshot.FetcherConfig{
		BaseURL:  cfg.Snapshot.BaseURL,
		Path:     cfg.Snapshot.Path,
		Version:  cfg.Snapshot.Version,
		Timeout:  cfg.Snapshot.Timeout,
		MaxBytes: cfg.Snapshot.MaxBytes,
	}
	if cfg.Snapshot.TLSCAFile != "" {
		pool, err := tlsroots.LoadPool(cfg.Snapshot.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("load snapshot CA: %w", err)
		}
		fetchCfg.TLS = pool.ClientConfig()
	}

	fetcher, err := snapshot.NewFetcher(fetchCfg, cache, metrics, log)
	if err != nil {
		return nil, err
	}

	opts := sqlengine.Options{TempDir: cfg.Snapshot.TempDir}
	open := func(ctx context.Context, data []byte) (domain.Engine, error) {
		engine, err := sqlengine.Open(ctx, data, opts)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}

	loader := service.NewSnapshotLoader(fetcher, open, cfg.Snapshot.Passphrase, log)
	return service.NewLifecycle(loader, metrics, log), nil
}

func initHandler(cfg *config.ServerConfig, lifecycle *service.Lifecycle, metrics *metric.Registry, log *slog.Logger) (http.Handler, error) {
	routes, err := handler.NewRoutes(cfg.Intercept.BasePath, cfg.Intercept.Origin)
	if err != nil {
		return nil, err
	}

	passThrough, err := handler.NewPassThrough(handler.PassThroughConfig{
		Upstream:  cfg.Intercept.Upstream,
		StaticDir: cfg.Intercept.StaticDir,
	}, log)
	if err != nil {
		return nil, err
	}

	denylist := service.NewDenylist(cfg.Policy.DeniedTables)
	log.Info("query policy", "denied_tables", denylist.Words())

	return handler.New(handler.Config{
		Routes:       routes,
		Readiness:    lifecycle,
		Queries:      service.NewQueryService(lifecycle, denylist, metrics, log),
		PassThrough:  passThrough,
		MaxBodyBytes: cfg.Intercept.MaxBodyBytes,
		Metrics:      metrics,
		Logger:       log,
	}), nil
}
