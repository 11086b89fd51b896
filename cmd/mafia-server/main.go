// Package main is the entry point for the Mafia game server. It only handles
// dependency injection and server initialization; no game logic lives here.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/outfoxed-dev/mafia-server/internal/auth"
	"github.com/outfoxed-dev/mafia-server/internal/config"
	"github.com/outfoxed-dev/mafia-server/internal/infra/storage"
	"github.com/outfoxed-dev/mafia-server/internal/platform/clock"
	"github.com/outfoxed-dev/mafia-server/internal/platform/logger"
	"github.com/outfoxed-dev/mafia-server/internal/platform/metrics"
	"github.com/outfoxed-dev/mafia-server/internal/platform/random"
	"github.com/outfoxed-dev/mafia-server/internal/rooms"
	"github.com/outfoxed-dev/mafia-server/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Debug)
	defer log.Sync()

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open game store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	mc := metrics.New()
	manager := rooms.NewManager(cfg, log, mc, clock.NewReal(), random.NewTimeSource(), store)
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.AllowGuests)
	wsServer := ws.NewServer(cfg, verifier, manager, log, mc)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Handle("/ws", wsServer)
	r.Handle("/metrics", mc.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/api/rooms", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, manager.ListPublicRooms())
	})
	r.Get("/api/games/recent", func(w http.ResponseWriter, req *http.Request) {
		limit := 20
		if v := req.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		games, err := store.RecentGames(req.Context(), limit)
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, games)
	})
	r.Get("/api/players/{playerID}/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := store.StatsFor(req.Context(), chi.URLParam(req, "playerID"))
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	manager.Shutdown()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
