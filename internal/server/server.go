package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"nav-simulator/internal/nav"
	"nav-simulator/internal/places"
)

// Navigator is the coordinator surface exposed over HTTP.
type Navigator interface {
	Snapshot() nav.Snapshot
	RequestRoute(ctx context.Context, origin nav.Origin, destination string) (nav.Snapshot, error)
	Cancel() nav.Snapshot
	AdvanceStep() (nav.Snapshot, bool)
	ToggleHeadingUp() nav.Snapshot
	ToggleTraffic() nav.Snapshot
	SetTheme(theme nav.Theme) nav.Snapshot
	DismissAlert() nav.Snapshot
}

type Suggester interface {
	Suggest(ctx context.Context, input string) []places.Suggestion
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	logger      *logrus.Logger
	nav         Navigator
	places      Suggester
	hub         *Hub
	systemTheme nav.Theme
}

// Config holds server configuration
type Config struct {
	Addr string
	// SystemTheme resolves the SYSTEM theme preference.
	SystemTheme nav.Theme
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, n Navigator, p Suggester, hub *Hub, logger *logrus.Logger) *Server {
	s := &Server{
		logger:      logger,
		nav:         n,
		places:      p,
		hub:         hub,
		systemTheme: cfg.SystemTheme,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/route", s.handleRequestRoute).Methods(http.MethodPost)
	api.HandleFunc("/route", s.handleCancel).Methods(http.MethodDelete)
	api.HandleFunc("/route/advance", s.handleAdvance).Methods(http.MethodPost)
	api.HandleFunc("/heading-up", s.handleHeadingUp).Methods(http.MethodPost)
	api.HandleFunc("/traffic", s.handleTraffic).Methods(http.MethodPost)
	api.HandleFunc("/theme", s.handleTheme).Methods(http.MethodPut)
	api.HandleFunc("/alert", s.handleDismissAlert).Methods(http.MethodDelete)
	api.HandleFunc("/places", s.handlePlaces).Methods(http.MethodGet)

	if s.hub != nil {
		router.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	}
	return router
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Infof("Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %v", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("http request")
	})
}
