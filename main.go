package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeshare-server/config"
	"codeshare-server/core"
	"codeshare-server/gateway"
	"codeshare-server/handlers/api/records"
	roomsapi "codeshare-server/handlers/api/rooms"
	"codeshare-server/handlers/websocket"
	"codeshare-server/metrics"
	"codeshare-server/rooms"
	"codeshare-server/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(documentStore core.DocumentStore, registry *rooms.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/record/{title}", records.HandleGet(documentStore))
	r.Get("/records", records.HandleList(documentStore))

	var tracker core.RoomTracker
	if t, ok := documentStore.(core.RoomTracker); ok {
		tracker = t
	}
	r.Get("/api/rooms", roomsapi.HandleList(registry, tracker))

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	return r
}

func waitForShutdown(ioo *socketio.Server, server *http.Server, store core.DocumentStore) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	ioo.Close(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close storage")
		}
	}
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Config.Load already validated the level.
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	documentStore, err := stores.GetStore(context.Background(), cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up storage")
	}

	registry := rooms.NewRegistry()
	gw := gateway.New(registry, documentStore, gateway.Options{
		RequireTitle:   cfg.RequireTitle,
		PersistTimeout: cfg.PersistTimeout,
	})

	r := setupRouter(documentStore, registry)
	ioo := websocket.SetupSocketIO(gw, cfg.AllowedOrigin)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"addr":          cfg.ListenAddr,
		"allowedOrigin": cfg.AllowedOrigin,
	}).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo, server, documentStore)
}
