package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeBackendError maps err to a status and logs server-side failures
func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	log := logger.FromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		log.Errorw("Backend operation failed", logger.FieldOperation, op, logger.FieldError, err)
	} else {
		log.Debugw("Request rejected", logger.FieldOperation, op, logger.FieldStatus, status, logger.FieldError, err)
	}
	writeError(w, status, code, err.Error())
}

// readJSON reads and decodes a JSON request body
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("Invalid request body: %v", err))
		return err
	}
	return nil
}

// pageFromQuery reads cursor and chunk_size from the URL query
func pageFromQuery(w http.ResponseWriter, r *http.Request) (storage.PageRequest, bool) {
	var req storage.PageRequest
	q := r.URL.Query()
	if v := q.Get("cursor"); v != "" {
		c, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("invalid cursor %q", v))
			return req, false
		}
		req.Cursor = c
	}
	if v := q.Get("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("invalid chunk_size %q", v))
			return req, false
		}
		req.ChunkSize = n
	}
	return req, true
}

// shortID truncates an ID to 8 characters for logging
func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
