package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pescapos/backend/internal/cache"
	"pescapos/backend/internal/config"
	"pescapos/backend/internal/httpapi"
	"pescapos/backend/internal/report"
	"pescapos/backend/internal/service"
	"pescapos/backend/internal/store"
	"pescapos/backend/internal/store/memory"
	pgstore "pescapos/backend/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		if err := pgstore.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		if cfg.SeedDemoData {
			repo = memory.NewSeeded()
		} else {
			repo = memory.New()
		}
		log.Println("repository: in-memory")
	}

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	svc := service.New(repo)
	reports := report.NewEngine(repo, reportCache)
	api := httpapi.New(svc, reports, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("pescapos backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}
