package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/config"
	"github.com/edgelift/gateway/internal/common/logger"
	"github.com/edgelift/gateway/internal/common/metricsserver"
	"github.com/edgelift/gateway/internal/common/redis"
	"github.com/edgelift/gateway/internal/gateway/classify"
	"github.com/edgelift/gateway/internal/gateway/configtest"
	"github.com/edgelift/gateway/internal/gateway/entitlement"
	"github.com/edgelift/gateway/internal/gateway/events"
	"github.com/edgelift/gateway/internal/gateway/internal_server"
	"github.com/edgelift/gateway/internal/gateway/metrics"
	"github.com/edgelift/gateway/internal/gateway/origin"
	"github.com/edgelift/gateway/internal/gateway/pipeline"
	"github.com/edgelift/gateway/internal/gateway/ratelimit"
	"github.com/edgelift/gateway/internal/gateway/server"
	"github.com/edgelift/gateway/internal/gateway/tlslisten"
	"github.com/edgelift/gateway/internal/gateway/validate"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("c", "configs/rewrite-gateway.yaml", "path to configuration file")
	testMode := flag.Bool("t", false, "test configuration and exit")
	flag.Parse()

	// If test mode, run validation
	if *testMode {
		var testURL string
		if flag.NArg() > 0 {
			testURL = flag.Arg(0)
		}
		exitCode := runConfigTest(*configPath, testURL)
		os.Exit(exitCode)
	}

	// Create initial logger for startup
	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting Rewrite Gateway", zap.String("config_path", *configPath))

	configManager, err := config.NewRGConfigManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to create config manager", zap.Error(err))
	}

	cfg := configManager.GetConfig()

	// Reconfigure logger based on config settings
	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	// Add Rewrite Gateway ID to all logs
	rgID := cfg.RgID
	if rgID == "" {
		rgID = "default"
	}
	rgLogger := dynamicLogger.With(zap.String("rg", rgID))

	// Create Redis client when configured. Redis backs the rate limiter and
	// the entitlement verdict cache; the proxy path never touches it.
	var redisClient *redis.Client
	if cfg.Redis != nil {
		redisClient, err = redis.NewClient(cfg.Redis, rgLogger)
		if err != nil {
			rgLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetricsCollector(cfg.Metrics.Namespace, rgLogger)

	// Start metrics server if enabled
	metricsServer, err := metricsserver.StartMetricsServer(
		cfg.Metrics.Enabled,
		cfg.Metrics.Listen,
		cfg.Metrics.Path,
		metricsCollector,
		rgLogger,
	)
	if err != nil {
		rgLogger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	// Initialize event emitters
	var eventEmitter events.EventEmitter
	if cfg.EventLogging != nil {
		var emitters []events.EventEmitter
		if cfg.EventLogging.File.Enabled {
			fileEmitter, err := events.NewFileEmitter(cfg.EventLogging.File, rgLogger)
			if err != nil {
				rgLogger.Fatal("failed to create file emitter", zap.Error(err))
			}
			emitters = append(emitters, fileEmitter)
			rgLogger.Info("File event logging initialized",
				zap.String("path", cfg.EventLogging.File.Path))
		}
		if cfg.EventLogging.ClickHouse.Enabled {
			chEmitter, err := events.NewClickHouseEmitter(cfg.EventLogging.ClickHouse, rgLogger)
			if err != nil {
				rgLogger.Fatal("failed to create clickhouse emitter", zap.Error(err))
			}
			emitters = append(emitters, chEmitter)
			rgLogger.Info("ClickHouse event logging initialized",
				zap.String("table", cfg.EventLogging.ClickHouse.Table))
		}
		if len(emitters) > 0 {
			eventEmitter = events.NewMultiEmitter(emitters, rgLogger)
		}
	}

	// Initialize entitlement service
	var entitlementSvc *entitlement.Service
	if cfg.Entitlement != nil && cfg.Entitlement.Enabled {
		entitlementSvc = entitlement.NewService(cfg.Entitlement, redisClient, rgID, rgLogger)
		rgLogger.Info("Entitlement service initialized", zap.String("url", cfg.Entitlement.URL))
	}

	// Initialize rate limiter
	var rateLimiter *ratelimit.Limiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		if redisClient == nil {
			rgLogger.Fatal("Rate limiting requires a redis section in the configuration")
		}
		rateLimiter = ratelimit.NewLimiter(cfg.RateLimit, redisClient, rgLogger)
		rgLogger.Info("Rate limiter initialized",
			zap.Int("requests", cfg.RateLimit.Requests),
			zap.Duration("window", rateLimiter.Window()))
	}

	// Assemble the proxy pipeline
	proxyPipeline := pipeline.NewPipeline(
		origin.NewClient(rgLogger),
		classify.NewClassifier(rgLogger),
		entitlementSvc,
		metricsCollector,
		rgLogger,
	)

	// Create public server
	srv := server.NewServer(
		configManager,
		redisClient,
		proxyPipeline,
		rateLimiter,
		metricsCollector,
		eventEmitter,
		rgID,
		rgLogger,
	)

	// Create internal server and register endpoints
	internalSrv := internal_server.NewInternalServer(cfg.Internal.AuthKey, rgLogger)
	internal_server.NewHandlers(configManager, metricsCollector, rgLogger).RegisterEndpoints(internalSrv)

	go func() {
		if err := internalSrv.Start(cfg.Internal.Listen); err != nil {
			rgLogger.Error("Internal server failed", zap.Error(err))
		}
	}()
	rgLogger.Info("Internal server started", zap.String("address", cfg.Internal.Listen))

	// Create TLS listener before starting public servers to fail fast
	var tlsListener net.Listener
	if cfg.Server.TLS.Enabled {
		configDir := filepath.Dir(*configPath)
		certPath := cfg.Server.TLS.CertFile
		keyPath := cfg.Server.TLS.KeyFile
		if !filepath.IsAbs(certPath) {
			certPath = filepath.Join(configDir, certPath)
		}
		if !filepath.IsAbs(keyPath) {
			keyPath = filepath.Join(configDir, keyPath)
		}

		var err error
		tlsListener, err = tlslisten.NewListener(cfg.Server.TLS.Listen, certPath, keyPath)
		if err != nil {
			rgLogger.Fatal("Failed to create TLS listener", zap.Error(err))
		}
	}

	// Channel for server startup errors
	serverErrors := make(chan error, 2)

	// Create and start HTTP server
	httpLifecycle := &serverLifecycle{
		server:  newFastHTTPServer(srv.HandleRequest, cfg.Server.Timeout.ToDuration()),
		name:    "HTTP",
		address: cfg.Server.Listen,
		logger:  rgLogger,
	}
	httpLifecycle.StartWithErrorChan(serverErrors)

	// Create and start HTTPS server if TLS is enabled
	var httpsLifecycle *serverLifecycle
	if cfg.Server.TLS.Enabled {
		httpsLifecycle = &serverLifecycle{
			server:   newFastHTTPServer(srv.HandleRequest, cfg.Server.Timeout.ToDuration()),
			listener: tlsListener,
			name:     "HTTPS",
			address:  cfg.Server.TLS.Listen,
			logger:   rgLogger,
		}
		httpsLifecycle.StartWithErrorChan(serverErrors)
	}

	// Wait briefly for servers to start and check for immediate failures
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		rgLogger.Fatal("Server failed to start", zap.Error(err))
	default:
		// Servers started successfully
	}

	if cfg.Server.TLS.Enabled {
		rgLogger.Info("Rewrite Gateway started",
			zap.String("http_addr", cfg.Server.Listen),
			zap.String("https_addr", cfg.Server.TLS.Listen))
	} else {
		rgLogger.Info("Rewrite Gateway started", zap.String("http_addr", cfg.Server.Listen))
	}

	// Switch to configured log level after startup is complete
	dynamicLogger.SwitchToConfiguredLevel()

	// Wait for shutdown signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		dynamicLogger.EnsureInfoLevelForShutdown()
		rgLogger.Info("Shutting down Rewrite Gateway...")
	case err := <-serverErrors:
		dynamicLogger.EnsureInfoLevelForShutdown()
		rgLogger.Error("Server startup failed, initiating shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		rgLogger.Info("Shutting down metrics server")
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			rgLogger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// Shutdown internal server
	if err := internalSrv.Shutdown(shutdownCtx); err != nil {
		rgLogger.Error("Failed to shutdown internal server gracefully", zap.Error(err))
	}
	rgLogger.Info("Internal server shutdown complete")

	// Shutdown public servers in parallel
	var wg sync.WaitGroup
	wg.Add(1)
	if httpsLifecycle != nil {
		wg.Add(1)
	}
	go func() {
		defer wg.Done()
		httpLifecycle.Shutdown(shutdownCtx)
	}()
	if httpsLifecycle != nil {
		go func() {
			defer wg.Done()
			httpsLifecycle.Shutdown(shutdownCtx)
		}()
	}
	wg.Wait()
	rgLogger.Info("Public servers shutdown complete")

	// Flush and close event emitters
	if err := srv.Shutdown(); err != nil {
		rgLogger.Error("Failed to close event emitter", zap.Error(err))
	}
	rgLogger.Info("Event emitter shutdown complete")

	rgLogger.Info("Rewrite Gateway stopped")
}

const serverName = "EdgeLift/1.0"

func newFastHTTPServer(handler fasthttp.RequestHandler, timeout time.Duration) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}
}

type serverLifecycle struct {
	server   *fasthttp.Server
	listener net.Listener // nil for HTTP (uses ListenAndServe), set for HTTPS
	name     string
	address  string
	logger   *zap.Logger
}

func (s *serverLifecycle) StartWithErrorChan(errChan chan<- error) {
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe(s.address)
		}
		if err != nil {
			s.logger.Error("Server error", zap.String("name", s.name), zap.Error(err))
			if errChan != nil {
				errChan <- fmt.Errorf("%s server failed: %w", s.name, err)
			}
		}
	}()
	s.logger.Info("Server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", zap.String("name", s.name))
	err := s.server.ShutdownWithContext(ctx)
	if err != nil {
		s.logger.Error("Server shutdown error", zap.String("name", s.name), zap.Error(err))
	}
	return err
}

// runConfigTest runs configuration validation and optional URL testing
func runConfigTest(configPath string, testURL string) int {
	result, err := validate.ValidateConfiguration(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		return 1
	}

	if !result.Valid {
		fmt.Println("Configuration validation FAILED:")
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Printf("- %s line %d: %s\n", e.File, e.Line, e.Message)
			} else {
				fmt.Printf("- %s: %s\n", e.File, e.Message)
			}
		}
		return 1
	}

	fmt.Printf("configuration file %s syntax is ok\n", result.ConfigPath)

	if len(result.Warnings) > 0 {
		fmt.Println()
		fmt.Printf("Configuration warnings (%d):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			if w.Line > 0 {
				fmt.Printf("- %s line %d: %s\n", w.File, w.Line, w.Message)
			} else {
				fmt.Printf("- %s: %s\n", w.File, w.Message)
			}
		}
		fmt.Println()
	}

	fmt.Println("configuration test is successful")

	if testURL != "" {
		urlResult, err := configtest.TestURL(testURL, result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nURL test error: %v\n", err)
			return 1
		}
		configtest.PrintURLTestResult(urlResult)
	}

	return 0
}
