package main

import (
	"log"
	"net/http"

	"github.com/nadmax/profiledash/internal/backend"
	"github.com/nadmax/profiledash/internal/cache"
	"github.com/nadmax/profiledash/internal/config"
	"github.com/nadmax/profiledash/internal/middleware"
	"github.com/nadmax/profiledash/internal/repository"
	"github.com/nadmax/profiledash/internal/server"
	"github.com/nadmax/profiledash/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	client := backend.NewClient(cfg.BackendURL)
	st := store.New()
	srv := server.New(client, st)

	if cfg.RedisAddr != "" {
		c, err := cache.New(cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := c.Close(); err != nil {
				log.Printf("failed to close cache: %v", err)
			}
		}()
		srv.SetCache(c)
		log.Printf("Response cache enabled at %s", cfg.RedisAddr)
	}

	if cfg.PostgresDSN != "" {
		repo, err := repository.NewExportHistoryRepository(cfg.PostgresDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := repo.Close(); err != nil {
				log.Printf("failed to close export history repository: %v", err)
			}
		}()
		srv.SetHistoryRecorder(repo)
		log.Printf("Durable export history enabled")
	}

	go startMetricsCollector(st)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", middleware.CORS(middleware.Metrics(srv)))

	log.Printf("Server starting on :%s", cfg.Port)
	log.Printf("Proxying to backend at %s", cfg.BackendURL)

	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		log.Fatal(err)
	}
}
