package main

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"stockscan/handler"
	"stockscan/notify"
	"stockscan/remote"
	"stockscan/scanner"
	"stockscan/store"
)

//go:embed migrations.sql
var migrationSQL string

func main() {
	logger := log.New(os.Stdout, "[stockscan] ", log.LstdFlags)

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	// --- Snapshots ---
	snaps, cleanup, err := buildSnapshots(cfg)
	if err != nil {
		logger.Fatalf("snapshot backend %s: %v", cfg.SnapshotBackend, err)
	}
	defer cleanup()
	logger.Printf("snapshot backend: %s", cfg.SnapshotBackend)

	// --- Remote client ---
	client := remote.NewClient(cfg.UpstreamURL, cfg.UpstreamToken, cfg.RemoteTimeout)

	// --- Stores (recover staged state) ---
	notifier := notify.NewLogNotifier(logger)
	cart, err := store.NewCartStore(ctx, client, snaps, notifier)
	if err != nil {
		logger.Fatalf("cart store: %v", err)
	}
	payments, err := store.NewPaymentQueueStore(ctx, client, snaps)
	if err != nil {
		logger.Fatalf("payment queue: %v", err)
	}
	logger.Printf("recovered %d cart lines, %d payment items", len(cart.Lines()), len(payments.Items()))

	// --- Scanner ---
	engine := scanner.New(scanner.Config{
		Cooldown:   cfg.ScanCooldown,
		Continuous: true,
		NewBeeper: func() (scanner.Beeper, error) {
			return &notify.LogBeeper{Logger: logger}, nil
		},
	})

	// --- Handlers / Router ---
	h := handler.NewHandler(cart, payments, engine, logger)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	rootCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Printf("server running on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = engine.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("server error: %v", err)
	}
	logger.Print("server stopped")
}

// buildSnapshots constructs the configured durable store and returns it
// with its cleanup func.
func buildSnapshots(cfg *Config) (store.Snapshots, func(), error) {
	switch cfg.SnapshotBackend {
	case "postgres":
		pg, err := store.NewPostgresSnapshots(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		if _, err := pg.DB.Exec(migrationSQL); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	case "redis":
		rs := store.NewRedisSnapshots(cfg.RedisAddr)
		return rs, func() { rs.Close() }, nil
	case "file":
		fs, err := store.NewFileSnapshots(cfg.SnapshotDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	default:
		return store.NewMemSnapshots(), func() {}, nil
	}
}
