// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"pongd/internal/auth"
	"pongd/internal/config"
	"pongd/internal/database"
	"pongd/internal/handlers"
	"pongd/internal/middleware"
	"pongd/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if cfg.JWTPublicKeyPath != "" {
		if err := auth.InitFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath); err != nil {
			log.Fatalf("auth keys: %v", err)
		}
	} else {
		logger.Warn("JWT_PUBLIC_KEY_PATH not set, generating throwaway keys; externally minted tokens will not verify")
		auth.Init()
	}

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			logger.Warnf("database unavailable, persistence disabled: %v", err)
		}
		cancel()
		defer database.Close()
	} else {
		logger.Warn("DATABASE_URL not set, persistence disabled")
	}

	queue := cfg.NotifyList
	if queue == "" {
		queue = notify.DefaultQueueName
	}
	notifier, err := notify.New(cfg.RedisAddr, cfg.RedisDB, queue, logger)
	if err != nil {
		logger.Warnf("redis unavailable, notifications disabled: %v", err)
	} else {
		defer notifier.Close()
	}

	gs := handlers.NewGameServer(logger, notifier)

	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			gs.SweepFinished()
		}
	}()

	withLog := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/game/start", withLog(http.HandlerFunc(gs.StartGameHandler)))
	mux.Handle("/game/queue/join", withLog(http.HandlerFunc(gs.JoinQueueHandler)))
	mux.Handle("/game/queue/depth", withLog(http.HandlerFunc(gs.QueueDepthHandler)))
	mux.Handle("/game/invite/accept", withLog(http.HandlerFunc(gs.AcceptInvitationHandler)))
	mux.Handle("/game/invite/refuse", withLog(http.HandlerFunc(gs.RefuseInvitationHandler)))
	mux.Handle("/game/quit", withLog(http.HandlerFunc(gs.QuitHandler)))
	mux.Handle("/game/ws/", withLog(http.HandlerFunc(
		handlers.GameWSHandler(logger, gs),
	)))

	addr := ":" + cfg.Port
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
