// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

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

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/config"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/handlers"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/integration"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/logging"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/middleware"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/relay"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/storage/postgres"
	redisstore "github.com/quuynXp/LinguaMonkey-sub002/backend/storage/redis"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Database connection
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	// Initialize storage
	store := postgres.NewStore(db)
	if err := store.Migrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	presence := redisstore.NewPresenceTracker(rdb, cfg.Presence.TTL)

	// External learning engine
	aiClient := integration.NewAIClient(integration.Config{
		BaseURL:     cfg.AI.BaseURL,
		CallBaseURL: cfg.AI.CallBaseURL,
		Timeout:     cfg.AI.Timeout,
	}, logger)

	// Live channel
	hub := relay.NewHub(logger)
	messageRelay := relay.NewMessageRelay(store, store, presence, aiClient, hub, cfg.Relay.EditWindow, logger)
	signaling := relay.NewSignalingRelay(store, hub)

	// Initialize handlers
	keyHandler := handlers.NewKeyHandler(store, store, cfg.Relay.PreKeyFloor, logger)
	roomHandler := handlers.NewRoomHandler(store, messageRelay, logger)
	wsHandler := handlers.NewWSHandler(hub, messageRelay, signaling, presence, logger)
	aiHandler := handlers.NewAIHandler(aiClient, logger)
	internalHandler := handlers.NewInternalHandler(store, cfg.AI.InternalKey, logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.CORS)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware)

	// Key distribution and backup
	api.HandleFunc("/keys/upload/{userId}", keyHandler.UploadKeys).Methods("POST")
	api.HandleFunc("/keys/fetch/{userId}", keyHandler.FetchBundle).Methods("GET")
	api.HandleFunc("/keys/backup/{userId}", keyHandler.StoreBackup).Methods("POST")
	api.HandleFunc("/keys/backup/{userId}", keyHandler.GetBackup).Methods("GET")

	// Rooms
	api.HandleFunc("/rooms", roomHandler.CreateRoom).Methods("POST")
	api.HandleFunc("/rooms/{roomId}", roomHandler.GetRoom).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/members", roomHandler.AddMembers).Methods("POST")
	api.HandleFunc("/rooms/{roomId}/members", roomHandler.RemoveMembers).Methods("DELETE")
	api.HandleFunc("/rooms/{roomId}/members", roomHandler.ListMembers).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/messages", roomHandler.History).Methods("GET")

	// Live channel
	api.Handle("/ws", wsHandler).Methods("GET")

	// Learning engine
	api.HandleFunc("/ai/match", aiHandler.Match).Methods("POST")
	api.HandleFunc("/ai/speech", aiHandler.EvaluateSpeech).Methods("POST")
	api.HandleFunc("/ai/speech/stream", aiHandler.EvaluateSpeechStream).Methods("POST")
	api.HandleFunc("/ai/writing", aiHandler.EvaluateWriting).Methods("POST")

	// Service-to-service callbacks, shared-key auth instead of user tokens
	r.HandleFunc("/internal/persistence/chat", internalHandler.PersistAITurn).Methods("POST")

	// Health check (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	server := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: r,
	}

	go func() {
		logger.Info("server starting",
			zap.String("address", cfg.HTTPAddress),
			zap.String("jwt_issuer", cfg.JWTIssuer))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
