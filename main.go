// Command spin-tracker is the main entrypoint for the spin accounting service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the delimited-file record store under DATA_DIR.
//   - Starts the Twitch chat listener feeding donations, gift subs, and
//     moderator spin commands into the ledger.
//   - Exposes the HTTP API with record lists, spin credit accounting,
//     import/export, /healthz, /status, /metrics, and the SSE event stream.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/spin-tracker/chat"
	"github.com/onnwee/spin-tracker/config"
	"github.com/onnwee/spin-tracker/events"
	"github.com/onnwee/spin-tracker/ledger"
	"github.com/onnwee/spin-tracker/resolver"
	"github.com/onnwee/spin-tracker/server"
	"github.com/onnwee/spin-tracker/store"
	"github.com/onnwee/spin-tracker/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("spin-tracker", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Record store
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open record store", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("record store opened", slog.String("dir", cfg.DataDir))

	// Settings document next to the record files
	settings, err := config.NewManager(filepath.Join(cfg.DataDir, "config.json"))
	if err != nil {
		slog.Error("failed to load settings", slog.Any("err", err))
		os.Exit(1)
	}

	bus := events.NewBus()
	svc := ledger.NewService(st, settings, bus)
	res := resolver.New(st, bus)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chat listener
	bot := chat.NewBot(*cfg, settings, svc, res, bus)
	go func() {
		if err := bot.Run(ctx); err != nil {
			slog.Error("chat listener exited with error", slog.Any("err", err))
		}
	}()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server
	deps := server.Deps{Store: st, Ledger: svc, Resolver: res, Settings: settings, Bus: bus}
	go func() {
		if err := server.Start(ctx, deps, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
