package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iou/internal/config"
	"iou/internal/db"
	"iou/internal/handlers"
	"iou/internal/logger"
	"iou/internal/services"
	"iou/internal/store"
	"iou/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := logger.Must(cfg.AppEnv)
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	users := store.NewUserStore(database)
	friends := store.NewFriendStore(database)
	requests := store.NewFriendRequestStore(database)
	persons := store.NewPersonStore(database)
	transactions := store.NewTransactionStore(database)
	notifications := store.NewNotificationStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database, log.Named("db"))
	hub := websocket.NewHub()

	notifier := services.NewNotifier(notifications, hub, log.Named("notifier"), cfg.NotificationLimit)
	friendships := services.NewFriendshipService(txRunner, users, friends, requests, persons, transactions, audit, notifier, log.Named("friends"))
	people := services.NewPersonService(txRunner, users, persons, transactions, friends, audit, notifier, log.Named("people"))
	ledger := services.NewLedgerService(txRunner, persons, transactions, audit, notifier, log.Named("ledger"))

	handler := handlers.New(txRunner, cfg, users, audit, friendships, people, ledger, notifier, hub, log.Named("http"))
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("iou API listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
