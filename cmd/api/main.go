package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"flowdeck.io/internal/auth"
	"flowdeck.io/internal/config"
	"flowdeck.io/internal/engine"
	"flowdeck.io/internal/httpapi"
	"flowdeck.io/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)
	if cfg.SecretGenerated {
		obs.Warn("token secret generated at startup", map[string]any{
			"hint": "set FLOWDECK_TOKEN_SECRET; outstanding tokens will not survive a restart",
		})
	}

	// Database when a DSN is set, in-memory store otherwise. The memory
	// store is for local development only: it starts empty and forgets
	// everything on exit.
	var (
		db    *sql.DB
		store auth.Store
	)
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		obs.Warn("no FLOWDECK_PG_DSN set, using in-memory store", nil)
		store = auth.NewMemoryStore()
	}

	codec, err := auth.NewCodec(cfg.TokenSecret)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	svc, err := auth.NewService(store, codec, auth.NewHasher(cfg.BcryptCost),
		auth.WithTokenTTL(cfg.TokenTTL),
		auth.WithAPIKeyBytes(cfg.APIKeyBytes),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	var eng *engine.Client
	if cfg.EngineBaseURL != "" {
		eng, err = engine.NewClient(cfg.EngineBaseURL, cfg.EngineToken)
		if err != nil {
			log.Fatalf("engine client: %v", err)
		}
	} else {
		obs.Warn("no FLOWDECK_ENGINE_URL set, tenant workflow routes disabled", nil)
	}

	api := httpapi.New(svc, eng, httpapi.ReadyProbe{DB: db}, version,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting flowdeck-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
