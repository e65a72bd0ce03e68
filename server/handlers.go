package server

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
	"github.com/teranos/atomdb/version"
)

func backendName(b storage.Backend) string {
	if s, ok := b.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", b)
}

// HandleHealth handles GET /health
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Get().String(),
		Backend: backendName(s.backend),
	})
}

// HandleSchema handles GET /schema
func (s *Server) HandleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SchemaResponse{UnorderedLinkTypes: s.backend.Schema().UnorderedTypes()})
}

// HandleCount handles GET /count
func (s *Server) HandleCount(w http.ResponseWriter, r *http.Request) {
	counts, err := s.backend.CountAtoms(r.Context())
	if err != nil {
		s.writeBackendError(w, r, "count", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandleClear handles DELETE /atoms
func (s *Server) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.ClearDatabase(r.Context()); err != nil {
		s.writeBackendError(w, r, "clear", err)
		return
	}
	logger.FromContext(r.Context(), s.logger).Infow("Database cleared")
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddNode handles POST /nodes
func (s *Server) HandleAddNode(w http.ResponseWriter, r *http.Request) {
	var p storage.Params
	if err := readJSON(w, r, &p); err != nil {
		return
	}
	a, err := s.backend.AddNode(r.Context(), p)
	if err != nil {
		s.writeBackendError(w, r, "add_node", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleAddLink handles POST /links
func (s *Server) HandleAddLink(w http.ResponseWriter, r *http.Request) {
	var p storage.Params
	if err := readJSON(w, r, &p); err != nil {
		return
	}
	a, err := s.backend.AddLink(r.Context(), p)
	if err != nil {
		s.writeBackendError(w, r, "add_link", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleNodeHandle handles GET /nodes/handle?type=&name=
func (s *Server) HandleNodeHandle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h, err := s.backend.GetNodeHandle(r.Context(), q.Get("type"), q.Get("name"))
	if err != nil {
		s.writeBackendError(w, r, "node_handle", err)
		return
	}
	writeJSON(w, http.StatusOK, HandleResponse{Handle: h})
}

// HandleLinkHandle handles POST /links/handle
func (s *Server) HandleLinkHandle(w http.ResponseWriter, r *http.Request) {
	var req LinkHandleRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	h, err := s.backend.GetLinkHandle(r.Context(), req.Type, req.Targets)
	if err != nil {
		s.writeBackendError(w, r, "link_handle", err)
		return
	}
	writeJSON(w, http.StatusOK, HandleResponse{Handle: h})
}

// HandleMatchLinks handles POST /links/match
func (s *Server) HandleMatchLinks(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	matches, err := s.backend.GetMatchedLinks(r.Context(), req.Type, req.Targets, storage.MatchOptions{ToplevelOnly: req.ToplevelOnly})
	if err != nil {
		s.writeBackendError(w, r, "match_links", err)
		return
	}
	s.writeMatchPage(w, r, "match_links", matches, req.PageRequest())
}

// HandleMatchTemplate handles POST /links/template
func (s *Server) HandleMatchTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.Template == nil {
		writeError(w, http.StatusBadRequest, CodeMalformedPattern, "missing template")
		return
	}
	matches, err := s.backend.GetMatchedTypeTemplate(r.Context(), req.Template, storage.MatchOptions{ToplevelOnly: req.ToplevelOnly})
	if err != nil {
		s.writeBackendError(w, r, "match_template", err)
		return
	}
	s.writeMatchPage(w, r, "match_template", matches, req.PageRequest())
}

// HandleMatchType handles GET /types/{type}/links?toplevel_only=&cursor=&chunk_size=
func (s *Server) HandleMatchType(w http.ResponseWriter, r *http.Request) {
	linkType, err := url.PathUnescape(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid type")
		return
	}
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	var opts storage.MatchOptions
	if v := r.URL.Query().Get("toplevel_only"); v != "" {
		opts.ToplevelOnly, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid toplevel_only")
			return
		}
	}
	matches, err := s.backend.GetMatchedType(r.Context(), linkType, opts)
	if err != nil {
		s.writeBackendError(w, r, "match_type", err)
		return
	}
	s.writeMatchPage(w, r, "match_type", matches, page)
}

// HandleGetAtom handles GET /atoms/{handle}
func (s *Server) HandleGetAtom(w http.ResponseWriter, r *http.Request) {
	a, err := s.backend.GetAtom(r.Context(), hasher.Handle(chi.URLParam(r, "handle")))
	if err != nil {
		s.writeBackendError(w, r, "get_atom", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleGetAtomDeep handles GET /atoms/{handle}/deep
func (s *Server) HandleGetAtomDeep(w http.ResponseWriter, r *http.Request) {
	d, err := s.backend.GetAtomDeep(r.Context(), hasher.Handle(chi.URLParam(r, "handle")))
	if err != nil {
		s.writeBackendError(w, r, "get_atom_deep", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleIncoming handles GET /atoms/{handle}/incoming?cursor=&chunk_size=
func (s *Server) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	req, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	page, err := s.backend.GetIncomingLinks(r.Context(), hasher.Handle(chi.URLParam(r, "handle")), req)
	if err != nil {
		s.writeBackendError(w, r, "incoming", err)
		return
	}
	if page.Items == nil {
		page.Items = []hasher.Handle{}
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleCreateIndex handles POST /indexes
func (s *Server) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req CreateIndexRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	id, err := s.backend.CreateFieldIndex(r.Context(), req.AtomType, req.Field)
	if err != nil {
		s.writeBackendError(w, r, "create_index", err)
		return
	}
	logger.FromContext(r.Context(), s.logger).Infow("Field index created",
		logger.FieldType, req.AtomType,
		logger.FieldName, req.Field,
		logger.FieldIndexID, shortID(string(id)),
	)
	writeJSON(w, http.StatusOK, HandleResponse{Handle: id})
}

// HandleQueryIndex handles POST /indexes/{id}/query
func (s *Server) HandleQueryIndex(w http.ResponseWriter, r *http.Request) {
	var req IndexQueryRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	got, err := s.backend.GetAtomsByIndex(r.Context(), hasher.Handle(chi.URLParam(r, "id")), req.Conditions)
	if err != nil {
		s.writeBackendError(w, r, "query_index", err)
		return
	}
	slices.Sort(got)
	page, err := storage.PageOf(got, req.PageRequest())
	if err != nil {
		s.writeBackendError(w, r, "query_index", err)
		return
	}
	if page.Items == nil {
		page.Items = []hasher.Handle{}
	}
	writeJSON(w, http.StatusOK, page)
}

// writeMatchPage orders matches by handle so offsets stay stable across
// requests, then writes the requested slice.
func (s *Server) writeMatchPage(w http.ResponseWriter, r *http.Request, op string, matches []storage.Match, req storage.PageRequest) {
	slices.SortFunc(matches, func(a, b storage.Match) int {
		switch {
		case a.Handle < b.Handle:
			return -1
		case a.Handle > b.Handle:
			return 1
		}
		return 0
	})
	page, err := storage.PageOf(matches, req)
	if err != nil {
		s.writeBackendError(w, r, op, errors.Wrap(err, op))
		return
	}
	if page.Items == nil {
		page.Items = []storage.Match{}
	}
	writeJSON(w, http.StatusOK, page)
}
