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

	"forestwatch.org/internal/auth"
	"forestwatch.org/internal/httpapi"
	"forestwatch.org/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("FORESTWATCH_PG_DSN")
	if dsn == "" {
		log.Fatal("missing FORESTWATCH_PG_DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	svc, err := auth.NewService(auth.NewPGStore(db))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	// Provision the role/permission catalog up front so registration never
	// has to repair it on the hot path.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := svc.EnsureCatalog(ctx); err != nil {
		cancel()
		log.Fatalf("provision catalog: %v", err)
	}
	cancel()

	var tokens *auth.TokenIssuer
	if secret := os.Getenv("FORESTWATCH_AUTH_SECRET"); secret != "" {
		tokens, err = auth.NewTokenIssuer(secret, 0)
		if err != nil {
			log.Fatalf("token issuer: %v", err)
		}
	} else {
		log.Print("FORESTWATCH_AUTH_SECRET not set; authenticated endpoints disabled")
	}

	addr := os.Getenv("FORESTWATCH_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, tokens)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Event("starting forestwatch-api", map[string]any{
		"version": version,
		"addr":    srv.Addr,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Event("shutting down", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = db.Close()
	obs.Event("stopped", nil)
}
