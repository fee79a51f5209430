package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omegaop/backoffice/internal/auth"
	"github.com/omegaop/backoffice/internal/config"
	"github.com/omegaop/backoffice/internal/handlers"
	"github.com/omegaop/backoffice/internal/server"
	"github.com/omegaop/backoffice/internal/store"
	appsync "github.com/omegaop/backoffice/internal/sync"
	"github.com/omegaop/backoffice/internal/ws"
)

func main() {
	// -----------------------------------------------------------------------
	// Configuration and logging.
	// -----------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	// -----------------------------------------------------------------------
	// MongoDB connection.
	// -----------------------------------------------------------------------
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.MongoURI)
	mongoClient, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warnf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}
	log.Info("Connected to MongoDB")

	db := mongoClient.Database(cfg.DBName)
	st := store.NewStore(db, log)

	// -----------------------------------------------------------------------
	// Init mode: provision the schema and exit. The normal entry path never
	// creates the collection itself.
	// -----------------------------------------------------------------------
	if cfg.InitMode {
		if err := st.Provision(ctx); err != nil {
			log.Fatalf("Provisioning failed: %v", err)
		}
		log.Info("Schema provisioned, restart without INITMODE")
		return
	}

	// -----------------------------------------------------------------------
	// Auth provider and websocket hub.
	// -----------------------------------------------------------------------
	authSvc := auth.NewService(db, cfg.JWTSecret, cfg.SessionTTL, log)

	hub := ws.NewHub(log)
	go hub.Run()

	// -----------------------------------------------------------------------
	// State synchronizer.
	// -----------------------------------------------------------------------
	syn := appsync.New(st, log,
		appsync.WithDebounce(cfg.SyncDebounce),
		appsync.WithCommitHook(func(snapshot []byte) {
			hub.Broadcast(store.DocumentID, snapshot)
		}),
	)
	if err := syn.Bootstrap(context.Background(), nil); err != nil {
		log.Fatalf("Cannot enter application: %v", err)
	}
	syn.AttachSessionFeed(authSvc)
	defer syn.Close()

	// -----------------------------------------------------------------------
	// HTTP server.
	// -----------------------------------------------------------------------
	h := handlers.NewHandlers(syn, authSvc, hub, log)
	router := server.NewServer(h, log)

	srv := &http.Server{Addr: cfg.Address, Handler: router}

	go func() {
		log.Infof("Omega back office starting on %s", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Shutdown error: %v", err)
	}
	log.Info("Server stopped")
}
