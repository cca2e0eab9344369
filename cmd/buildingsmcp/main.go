package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wienmaps/buildingsmcp/pkg/buildings"
	"github.com/wienmaps/buildingsmcp/pkg/cache"
	"github.com/wienmaps/buildingsmcp/pkg/geo"
	"github.com/wienmaps/buildingsmcp/pkg/monitoring"
	"github.com/wienmaps/buildingsmcp/pkg/overpass"
	"github.com/wienmaps/buildingsmcp/pkg/tools"
	"github.com/wienmaps/buildingsmcp/pkg/tracing"
	ver "github.com/wienmaps/buildingsmcp/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	userAgent       string

	// Overpass flags
	overpassURL   string
	overpassRPS   float64
	overpassBurst int

	// Cache flags
	cacheCapacity int

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&userAgent, "user-agent", overpass.DefaultUserAgent, "User-Agent string for Overpass API requests")

	// Overpass flags
	flag.StringVar(&overpassURL, "overpass-url", overpass.DefaultBaseURL, "Overpass API endpoint")
	flag.Float64Var(&overpassRPS, "overpass-rps", 1.0, "Overpass rate limit in requests per second")
	flag.IntVar(&overpassBurst, "overpass-burst", 1, "Overpass rate limit burst size")

	// Cache flags
	flag.IntVar(&cacheCapacity, "cache-capacity", cache.DefaultCapacity, "Maximum number of cached viewport entries")

	// Monitoring flags
	flag.BoolVar(&enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and health endpoints")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")
}

// applyEnvOverrides reads configuration from the environment. A .env file
// in the working directory is loaded first if present; explicit environment
// variables win over values already set by flags.
func applyEnvOverrides(logger *slog.Logger) {
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	if v := os.Getenv("OVERPASS_URL"); v != "" {
		overpassURL = v
	}
	if v := os.Getenv("OVERPASS_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			overpassRPS = f
		} else {
			logger.Warn("ignoring invalid OVERPASS_RPS", "value", v)
		}
	}
	if v := os.Getenv("OVERPASS_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			overpassBurst = n
		} else {
			logger.Warn("ignoring invalid OVERPASS_BURST", "value", v)
		}
	}
	if v := os.Getenv("CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cacheCapacity = n
		} else {
			logger.Warn("ignoring invalid CACHE_CAPACITY", "value", v)
		}
	}
	if v := os.Getenv("MONITOR_ADDR"); v != "" {
		monitoringAddr = v
	}
}

func main() {
	flag.Parse()

	var logLevel slog.Level
	if debug {
		logLevel = slog.LevelDebug
	} else {
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if showVersionFlag {
		fmt.Println(ver.Info()["version"])
		return
	}

	applyEnvOverrides(logger)

	// Initialize OpenTelemetry tracing
	ctx := context.Background()
	shutdownTracing, err := tracing.InitTracing(ctx, ver.Version)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		// Continue without tracing - it's not critical
	} else {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()

		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	logger.Info("starting building loader MCP server",
		"version", ver.Version,
		"log_level", logLevel.String(),
		"user_agent", userAgent,
		"overpass_url", overpassURL,
		"overpass_rps", overpassRPS,
		"overpass_burst", overpassBurst,
		"cache_capacity", cacheCapacity,
		"monitoring_enabled", enableMonitoring,
		"monitoring_addr", monitoringAddr)

	client := overpass.NewClient(overpass.Options{
		BaseURL:   overpassURL,
		UserAgent: userAgent,
		RPS:       overpassRPS,
		Burst:     overpassBurst,
		Logger:    logger,
	})

	loader := buildings.NewLoader(
		cache.NewBoundsCache(cacheCapacity),
		client,
		buildings.NewConverter(geo.ViennaRegion, logger),
		buildings.Options{Logger: logger},
	)

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start monitoring server if enabled
	if enableMonitoring {
		healthChecker := monitoring.NewHealthChecker(monitoring.ServiceName, ver.Version)
		defer healthChecker.Shutdown()

		overpassMonitor := monitoring.NewConnectionMonitor(
			"overpass",
			healthChecker,
			client.CheckHealth,
			30*time.Second,
		)
		overpassMonitor.Start()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", healthChecker.HealthHandler())
		mux.HandleFunc("/ready", healthChecker.ReadinessHandler())
		mux.HandleFunc("/live", healthChecker.LivenessHandler())

		monitoringServer := &http.Server{
			Addr:              monitoringAddr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		}

		go func() {
			logger.Info("starting monitoring server", "addr", monitoringAddr)
			if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitoring server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := monitoringServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown monitoring server", "error", err)
			}
		}()
	}

	s := server.NewMCPServer(
		"Building Loader MCP Server",
		ver.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	registry := tools.NewRegistry(logger, loader)
	registry.Register(s)

	logger.Info("transport_enabled", "type", "stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
