package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oppuna-lab/oppuna/pkg/usecase"
)

// Server is the HTTP controller. It owns routing and request/response
// translation; all behavior lives in the use case layer.
type Server struct {
	router *chi.Mux
}

// New creates the HTTP server over the use case layer.
func New(uc *usecase.UseCases) *Server {
	s := &Server{
		router: chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(accessLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/chat", s.handleChat(uc))
	s.router.Post("/suggest", s.handleSuggest(uc))
	s.router.Route("/history/{userID}", func(r chi.Router) {
		r.Get("/", s.handleHistory(uc))
		r.Delete("/", s.handleClearHistory(uc))
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
