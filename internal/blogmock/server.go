// Package blogmock is an in-memory stand-in for the blog application: the
// REST API (including the test-only reset route) and a minimal browser UI
// exposing the same controls as the real frontend.
package blogmock

import (
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"blog-e2e/internal/ir"
	"blog-e2e/internal/logging"
)

//go:embed web
var webFS embed.FS

type Server struct {
	store  *MemoryStore
	log    *log.Logger
	router *chi.Mux
}

func New(store *MemoryStore, logger *log.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{store: store, log: logger, router: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Store() *MemoryStore { return s.store }

// Preload creates users so the UI can be used without calling the seeding API.
func (s *Server) Preload(users []ir.User) error {
	for _, u := range users {
		if _, err := s.store.CreateUser(u); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/testing/reset", s.reset)
		r.Post("/users", s.createUser)
		r.Post("/login", s.login)
		r.Get("/blogs", s.listBlogs)
		r.Post("/blogs", s.createBlog)
		r.Put("/blogs/{id}", s.updateBlog)
		r.Delete("/blogs/{id}", s.deleteBlog)
	})

	static, _ := fs.Sub(webFS, "web")
	r.Handle("/*", http.FileServer(http.FS(static)))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"dur", time.Since(start).Round(time.Microsecond),
		)
	})
}
