package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/irma-project/irma-backend/config"
	"github.com/irma-project/irma-backend/internal/bootstrap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.OpenDB(ctx, &cfg.Database, bootstrap.DBOptions{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	db, err := bootstrap.OpenSQL(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	publisher, closePublisher, err := bootstrap.Publisher(cfg, rdb)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	defer closePublisher()

	services := bootstrap.BuildServices(cfg, db, rdb, publisher)
	authMW, err := bootstrap.AuthMiddleware(ctx, &cfg.Auth, services.Users)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		Config:   cfg,
		DB:       pool,
		Redis:    rdb,
		Services: services,
		Auth:     authMW,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("%s %s listening on :%s (auth=%s)", cfg.App.ServiceName, cfg.App.Version, cfg.Server.Port, cfg.Auth.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
