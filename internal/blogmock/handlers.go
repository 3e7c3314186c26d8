package blogmock

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"blog-e2e/internal/ir"
)

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	s.log.Info("state reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in ir.User
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json")
		return
	}
	u, err := s.store.CreateUser(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json")
		return
	}
	token, u, err := s.store.Login(in.Username, in.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": u.Username,
		"name":     u.Name,
	})
}

func (s *Server) listBlogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Blogs())
}

func (s *Server) createBlog(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var in ir.Blog
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json")
		return
	}
	b, err := s.store.CreateBlog(u, in)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrInvalidToken) {
			status = http.StatusUnauthorized
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) updateBlog(w http.ResponseWriter, r *http.Request) {
	var in ir.Blog
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json")
		return
	}
	b, err := s.store.UpdateBlog(chi.URLParam(r, "id"), in)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, b)
	}
}

func (s *Server) deleteBlog(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteBlog(chi.URLParam(r, "id"), u)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (User, bool) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
		return User{}, false
	}
	u, err := s.store.UserForToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return User{}, false
	}
	return u, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
