package server

import (
	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/storage"
)

// Request and response bodies shared with storage/remote.

// HandleResponse carries a single handle.
type HandleResponse struct {
	Handle hasher.Handle `json:"handle"`
}

// SchemaResponse describes how the served backend hashes links.
type SchemaResponse struct {
	UnorderedLinkTypes []string `json:"unordered_link_types"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
}

// LinkHandleRequest is the body of POST /links/handle.
type LinkHandleRequest struct {
	Type    string          `json:"type"`
	Targets []hasher.Handle `json:"targets"`
}

// MatchRequest is the body of POST /links/match.
type MatchRequest struct {
	Type         string          `json:"type"`
	Targets      []hasher.Handle `json:"targets"`
	ToplevelOnly bool            `json:"toplevel_only,omitempty"`
	Cursor       uint64          `json:"cursor,omitempty"`
	ChunkSize    int             `json:"chunk_size,omitempty"`
}

// TemplateRequest is the body of POST /links/template.
type TemplateRequest struct {
	Template     *atom.TypeTemplate `json:"template"`
	ToplevelOnly bool               `json:"toplevel_only,omitempty"`
	Cursor       uint64             `json:"cursor,omitempty"`
	ChunkSize    int                `json:"chunk_size,omitempty"`
}

// CreateIndexRequest is the body of POST /indexes.
type CreateIndexRequest struct {
	AtomType string `json:"atom_type"`
	Field    string `json:"field"`
}

// IndexQueryRequest is the body of POST /indexes/{id}/query.
type IndexQueryRequest struct {
	Conditions []storage.Condition `json:"conditions"`
	Cursor     uint64              `json:"cursor,omitempty"`
	ChunkSize  int                 `json:"chunk_size,omitempty"`
}

// PageRequest returns the paging part of r.
func (r MatchRequest) PageRequest() storage.PageRequest {
	return storage.PageRequest{Cursor: r.Cursor, ChunkSize: r.ChunkSize}
}

// PageRequest returns the paging part of r.
func (r TemplateRequest) PageRequest() storage.PageRequest {
	return storage.PageRequest{Cursor: r.Cursor, ChunkSize: r.ChunkSize}
}

// PageRequest returns the paging part of r.
func (r IndexQueryRequest) PageRequest() storage.PageRequest {
	return storage.PageRequest{Cursor: r.Cursor, ChunkSize: r.ChunkSize}
}
