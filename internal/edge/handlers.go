package edge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/validate"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

// respondError maps service errors onto the same statuses the main server
// uses.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid input", "fields": verr.Fields})
	case errors.Is(err, content.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, content.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, content.ErrSlugTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func listOptions(r *http.Request, drafts bool) content.ListOptions {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return content.ListOptions{
		IncludeDrafts: drafts,
		FeaturedOnly:  q.Get("featured") == "true",
		Tag:           q.Get("tag"),
		Limit:         min(max(limit, 0), 100),
		Offset:        max(offset, 0),
	}
}

func (s *Server) handleListProjects(drafts bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := s.content.ListProjects(r.Context(), listOptions(r, drafts))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, projects)
	}
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.content.GetProject(r.Context(), chi.URLParam(r, "slug"), false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleGetProjectByID(w http.ResponseWriter, r *http.Request) {
	p, err := s.content.GetProjectByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in content.ProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := s.content.CreateProject(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in content.ProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := s.content.UpdateProject(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.content.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListPosts(drafts bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := s.content.ListPosts(r.Context(), listOptions(r, drafts))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, posts)
	}
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.content.GetPost(r.Context(), chi.URLParam(r, "slug"), false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleGetPostByID(w http.ResponseWriter, r *http.Request) {
	p, err := s.content.GetPostByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var in content.PostInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := s.content.CreatePost(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var in content.PostInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := s.content.UpdatePost(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.content.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.content.Tags(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, tags)
}
