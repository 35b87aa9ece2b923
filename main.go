package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ge-copilot/internal/config"
	"ge-copilot/internal/logger"
	"ge-copilot/internal/priceapi"
	"ge-copilot/internal/profittrack"
	"ge-copilot/internal/reconcile"
	"ge-copilot/internal/rectrack"
	"ge-copilot/internal/store"
	"ge-copilot/internal/suggest"
	"ge-copilot/internal/transport"
)

var version = "dev"

// loadDotEnv loads environment variables from a local .env file so that
// double-clicked binaries (without a shell) can still use GECOPILOT_*
// settings. Existing OS env vars are never overridden.
func loadDotEnv() {
	paths := []string{".env"}

	if exePath, err := os.Executable(); err == nil {
		if exeDir := filepath.Dir(exePath); exeDir != "" {
			paths = append(paths, filepath.Join(exeDir, ".env"))
		}
	}

	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true

		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			l := strings.TrimSpace(line)
			if l == "" || strings.HasPrefix(l, "#") {
				continue
			}
			parts := strings.SplitN(l, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			if key == "" {
				continue
			}
			if os.Getenv(key) == "" {
				os.Setenv(key, val)
			}
		}
	}
}

func main() {
	loadDotEnv()

	cfg := config.LoadFromEnv()

	host := flag.String("host", cfg.Host, "Host to bind to (use 0.0.0.0 to allow LAN/remote access)")
	port := flag.Int("port", cfg.Port, "HTTP server port")
	flag.Parse()
	cfg.Host = *host
	cfg.Port = *port

	logger.Banner(version)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("store", fmt.Sprintf("failed to open database: %v", err))
		os.Exit(1)
	}
	defer st.Close()

	priceClient := priceapi.NewClient(cfg)
	prices := priceapi.NewPriceCache(priceClient)
	stopRefresh := prices.StartRefresh(cfg)
	defer stopRefresh()

	var trends *priceapi.TrendCache
	if cfg.EnableTrends {
		trends = priceapi.NewTrendCache(priceClient, time.Duration(cfg.TrendCacheTTLSeconds)*time.Second)
	}

	reconciler := reconcile.New(cfg)
	tracker := rectrack.New(int64(cfg.BuyRecTimeoutSeconds), int64(cfg.AbortCooldownSeconds))
	queue := suggest.NewBuyQueue(cfg.BuyQueuePath)
	engine := suggest.New(cfg, st, reconciler, tracker, prices, trends, queue)
	ledger := profittrack.New(cfg, prices)

	srv := transport.New(cfg, st, engine, prices, tracker, ledger, time.Now().Unix())

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Info("server", "listening on "+addr)

	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("server", "shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server", fmt.Sprintf("shutdown error: %v", err))
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server", fmt.Sprintf("failed: %v", err))
		os.Exit(1)
	}
	logger.Info("server", "stopped")
}
