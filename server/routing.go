package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/teranos/atomdb/logger"
)

// RequestIDHeader carries the caller's request id. Requests without one
// get a fresh uuid.
const RequestIDHeader = "X-Request-ID"

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestIDMiddleware)
	r.Use(s.accessLogMiddleware)

	r.Get("/health", s.HandleHealth)
	r.Get("/schema", s.HandleSchema)
	r.Get("/count", s.HandleCount)
	r.Delete("/atoms", s.HandleClear)

	r.Post("/nodes", s.HandleAddNode)
	r.Get("/nodes/handle", s.HandleNodeHandle)
	r.Post("/links", s.HandleAddLink)
	r.Post("/links/handle", s.HandleLinkHandle)
	r.Post("/links/match", s.HandleMatchLinks)
	r.Post("/links/template", s.HandleMatchTemplate)
	r.Get("/types/{type}/links", s.HandleMatchType)

	r.Get("/atoms/{handle}", s.HandleGetAtom)
	r.Get("/atoms/{handle}/deep", s.HandleGetAtomDeep)
	r.Get("/atoms/{handle}/incoming", s.HandleIncoming)

	r.Post("/indexes", s.HandleCreateIndex)
	r.Post("/indexes/{id}/query", s.HandleQueryIndex)

	s.logger.Debugw("HTTP routes registered", "routes", len(r.Routes()))
	return r
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debugw("HTTP request",
			logger.FieldRequestID, shortID(logger.RequestIDFromContext(r.Context())),
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, ww.Status(),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	})
}
