package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"workpal/internal/auth"
	"workpal/internal/cache"
	"workpal/internal/config"
	"workpal/internal/handlers"
	"workpal/internal/logger"
	"workpal/internal/protect"
	"workpal/internal/repository/postgres"
	"workpal/internal/service/conversation"
	"workpal/internal/service/search"
	"workpal/internal/service/session"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}

	logger.Log.Info("Initializing database...")
	database, err := postgres.NewPostgresDB(appConfig.Database)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close()

	store, err := cache.NewRedisStore(appConfig.Redis.URL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to cache store")
	}
	defer store.Close()

	protector := protect.New(appConfig.Protect)
	if protector == nil {
		logger.Log.Warn("Content encryption disabled")
	}

	conversations := conversation.NewService(database, store, protector, appConfig.Redis.TTL)
	searchService := search.NewService(database, store, appConfig.Redis.TTL)
	sessions := session.NewService(database, store, appConfig.Redis.TTL, appConfig.Session)

	h := handlers.NewHandlers(conversations, searchService, sessions)

	// Create new ServeMux to use Go 1.22+ routing features for path parameters
	mux := http.NewServeMux()

	// CORS preflight handler for OPTIONS requests
	corsHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.WriteHeader(http.StatusOK)
	}

	protected := func(handler http.HandlerFunc) http.HandlerFunc {
		return enableCORS(auth.Middleware(appConfig.Session, handler))
	}

	mux.HandleFunc("GET /api/health", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	mux.HandleFunc("OPTIONS /api/health", corsHandler)

	mux.HandleFunc("POST /api/conversations", protected(h.CreateConversation))
	mux.HandleFunc("GET /api/conversations", protected(h.ListConversations))
	mux.HandleFunc("OPTIONS /api/conversations", corsHandler)
	mux.HandleFunc("GET /api/conversations/search", protected(h.SearchConversations))
	mux.HandleFunc("OPTIONS /api/conversations/search", corsHandler)

	mux.HandleFunc("GET /api/conversations/{id}", protected(h.GetConversation))
	mux.HandleFunc("PUT /api/conversations/{id}", protected(h.UpdateConversation))
	mux.HandleFunc("DELETE /api/conversations/{id}", protected(h.DeleteConversation))
	mux.HandleFunc("OPTIONS /api/conversations/{id}", corsHandler)

	mux.HandleFunc("POST /api/conversations/{id}/messages", protected(h.AddMessage))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/messages", corsHandler)
	mux.HandleFunc("POST /api/conversations/{id}/messages/bulk", protected(h.BulkAddMessages))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/messages/bulk", corsHandler)
	mux.HandleFunc("GET /api/conversations/{id}/messages/recent", protected(h.RecentMessages))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/messages/recent", corsHandler)
	mux.HandleFunc("PUT /api/conversations/{id}/messages/{chat_id}", protected(h.UpdateMessage))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/messages/{chat_id}", corsHandler)
	mux.HandleFunc("POST /api/conversations/{id}/feedback", protected(h.UpdateFeedback))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/feedback", corsHandler)

	mux.HandleFunc("GET /api/session", protected(h.GetSession))
	mux.HandleFunc("PUT /api/session", protected(h.UpdateSession))
	mux.HandleFunc("OPTIONS /api/session", corsHandler)

	server := &http.Server{
		Addr:    ":" + appConfig.Server.Port,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Log.WithField("port", appConfig.Server.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Forced shutdown")
	}
}
