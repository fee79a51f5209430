package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/omegaop/backoffice/internal/handlers"
)

// NewServer creates and configures a mux.Router with all routes and middleware.
func NewServer(h *handlers.Handlers, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()

	// Global middleware.
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(log))

	// Health check (no auth required).
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// WebSocket state feed (no auth required; frames carry the shared
	// document every authenticated caller can read anyway).
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	// Auth surface.
	r.HandleFunc("/api/auth/signup", h.SignUp).Methods("POST")
	r.HandleFunc("/api/auth/signin", h.SignIn).Methods("POST")
	r.HandleFunc("/api/auth/signout", h.SignOut).Methods("POST")
	r.HandleFunc("/api/auth/session", h.GetSession).Methods("GET")

	// Intent endpoints require an authenticated session.
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.AuthMiddleware)

	api.HandleFunc("/state", h.GetState).Methods("GET")

	api.HandleFunc("/roles", h.RegisterRole).Methods("POST")

	api.HandleFunc("/team/{id}/name", h.SetDisplayName).Methods("PUT")
	api.HandleFunc("/team/{id}/role", h.SetUserRole).Methods("PUT")
	api.HandleFunc("/team/{id}/approve", h.ApproveUser).Methods("POST")
	api.HandleFunc("/team/{id}/active", h.SetUserActive).Methods("PUT")
	api.HandleFunc("/team/{id}", h.RemoveUser).Methods("DELETE")

	api.HandleFunc("/months", h.CreateMonth).Methods("POST")

	api.HandleFunc("/months/{month}/clients", h.AddClient).Methods("POST")
	api.HandleFunc("/months/{month}/clients/{id}", h.UpdateClient).Methods("PUT")
	api.HandleFunc("/months/{month}/clients/{id}", h.RemoveClient).Methods("DELETE")
	api.HandleFunc("/months/{month}/clients/{id}/assignees", h.AssignUsers).Methods("PUT")
	api.HandleFunc("/months/{month}/clients/{id}/paused", h.SetClientPaused).Methods("PUT")
	api.HandleFunc("/months/{month}/clients/{id}/folder", h.UpdateClientFolder).Methods("PUT")
	api.HandleFunc("/months/{month}/clients/{id}/plan", h.SetPlanItems).Methods("PUT")

	api.HandleFunc("/months/{month}/tasks", h.AddTask).Methods("POST")
	api.HandleFunc("/months/{month}/tasks/{id}/toggle", h.ToggleTask).Methods("POST")
	api.HandleFunc("/months/{month}/tasks/{id}", h.RemoveTask).Methods("DELETE")

	api.HandleFunc("/months/{month}/goal", h.UpdateSalesGoal).Methods("PUT")
	api.HandleFunc("/months/{month}/sales", h.RegisterSale).Methods("POST")

	api.HandleFunc("/months/{month}/chat", h.PostChatMessage).Methods("POST")

	api.HandleFunc("/months/{month}/squads", h.CreateSquad).Methods("POST")
	api.HandleFunc("/months/{month}/squads/{id}/members", h.SetSquadMembers).Methods("PUT")
	api.HandleFunc("/months/{month}/squads/{id}/messages", h.PostSquadMessage).Methods("POST")

	api.HandleFunc("/months/{month}/{section}/items", h.CreateDriveItem).Methods("POST")
	api.HandleFunc("/months/{month}/{section}/items/{id}/name", h.RenameDriveItem).Methods("PUT")
	api.HandleFunc("/months/{month}/{section}/items/{id}/content", h.SetDriveItemContent).Methods("PUT")
	api.HandleFunc("/months/{month}/{section}/items/{id}/payload", h.GetDriveItemPayload).Methods("GET")
	api.HandleFunc("/months/{month}/{section}/items/{id}", h.DeleteDriveItem).Methods("DELETE")

	return r
}

// corsMiddleware adds permissive CORS headers for the SPA origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each incoming request with method, path, status, and duration.
func loggingMiddleware(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rw.statusCode,
				"duration": time.Since(start).String(),
			}).Info("request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker so WebSocket upgrades work through the logging middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
	}
	return h.Hijack()
}
