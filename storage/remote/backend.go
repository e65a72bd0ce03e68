package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/server"
	"github.com/teranos/atomdb/storage"
)

var (
	_ storage.Backend   = (*Client)(nil)
	_ storage.Paginated = (*Client)(nil)
)

// Schema implements storage.Backend.
func (c *Client) Schema() atom.Schema { return c.schema }

func (c *Client) GetNodeHandle(ctx context.Context, nodeType, name string) (hasher.Handle, error) {
	var resp server.HandleResponse
	q := url.Values{"type": {nodeType}, "name": {name}}
	if err := c.call(ctx, "node_handle", http.MethodGet, "/nodes/handle", q, nil, &resp); err != nil {
		return "", err
	}
	return resp.Handle, nil
}

func (c *Client) GetLinkHandle(ctx context.Context, linkType string, targets []hasher.Handle) (hasher.Handle, error) {
	var resp server.HandleResponse
	body := server.LinkHandleRequest{Type: linkType, Targets: targets}
	if err := c.call(ctx, "link_handle", http.MethodPost, "/links/handle", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Handle, nil
}

// MatchedLinksPage implements storage.Paginated.
func (c *Client) MatchedLinksPage(ctx context.Context, linkType string, targets []hasher.Handle, opts storage.MatchOptions, req storage.PageRequest) (storage.Page[storage.Match], error) {
	var page storage.Page[storage.Match]
	body := server.MatchRequest{
		Type:         linkType,
		Targets:      targets,
		ToplevelOnly: opts.ToplevelOnly,
		Cursor:       req.Cursor,
		ChunkSize:    req.ChunkSize,
	}
	err := c.call(ctx, "match_links", http.MethodPost, "/links/match", nil, body, &page)
	return page, err
}

func (c *Client) GetMatchedLinks(ctx context.Context, linkType string, targets []hasher.Handle, opts storage.MatchOptions) ([]storage.Match, error) {
	return collect(ctx, func(ctx context.Context, req storage.PageRequest) (storage.Page[storage.Match], error) {
		return c.MatchedLinksPage(ctx, linkType, targets, opts, req)
	})
}

func (c *Client) GetMatchedTypeTemplate(ctx context.Context, tmpl *atom.TypeTemplate, opts storage.MatchOptions) ([]storage.Match, error) {
	if tmpl == nil {
		return nil, errors.NewMalformedPatternError("nil type template")
	}
	return collect(ctx, func(ctx context.Context, req storage.PageRequest) (storage.Page[storage.Match], error) {
		var page storage.Page[storage.Match]
		body := server.TemplateRequest{
			Template:     tmpl,
			ToplevelOnly: opts.ToplevelOnly,
			Cursor:       req.Cursor,
			ChunkSize:    req.ChunkSize,
		}
		err := c.call(ctx, "match_template", http.MethodPost, "/links/template", nil, body, &page)
		return page, err
	})
}

func (c *Client) GetMatchedType(ctx context.Context, linkType string, opts storage.MatchOptions) ([]storage.Match, error) {
	path := "/types/" + url.PathEscape(linkType) + "/links"
	return collect(ctx, func(ctx context.Context, req storage.PageRequest) (storage.Page[storage.Match], error) {
		var page storage.Page[storage.Match]
		q := pageQuery(req)
		if opts.ToplevelOnly {
			q.Set("toplevel_only", "true")
		}
		err := c.call(ctx, "match_type", http.MethodGet, path, q, nil, &page)
		return page, err
	})
}

func (c *Client) GetAtom(ctx context.Context, h hasher.Handle) (*atom.Atom, error) {
	var a atom.Atom
	if err := c.call(ctx, "get_atom", http.MethodGet, "/atoms/"+url.PathEscape(string(h)), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) GetAtomDeep(ctx context.Context, h hasher.Handle) (*atom.Deep, error) {
	var d atom.Deep
	if err := c.call(ctx, "get_atom_deep", http.MethodGet, "/atoms/"+url.PathEscape(string(h))+"/deep", nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) GetIncomingLinks(ctx context.Context, h hasher.Handle, req storage.PageRequest) (storage.Page[hasher.Handle], error) {
	var page storage.Page[hasher.Handle]
	err := c.call(ctx, "incoming", http.MethodGet, "/atoms/"+url.PathEscape(string(h))+"/incoming", pageQuery(req), nil, &page)
	return page, err
}

func (c *Client) AddNode(ctx context.Context, p storage.Params) (*atom.Atom, error) {
	var a atom.Atom
	if err := c.call(ctx, "add_node", http.MethodPost, "/nodes", nil, p, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) AddLink(ctx context.Context, p storage.Params) (*atom.Atom, error) {
	var a atom.Atom
	if err := c.call(ctx, "add_link", http.MethodPost, "/links", nil, p, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) CountAtoms(ctx context.Context) (storage.Counts, error) {
	var counts storage.Counts
	err := c.call(ctx, "count", http.MethodGet, "/count", nil, nil, &counts)
	return counts, err
}

func (c *Client) ClearDatabase(ctx context.Context) error {
	return c.call(ctx, "clear", http.MethodDelete, "/atoms", nil, nil, nil)
}

func (c *Client) CreateFieldIndex(ctx context.Context, atomType, field string) (hasher.Handle, error) {
	var resp server.HandleResponse
	body := server.CreateIndexRequest{AtomType: atomType, Field: field}
	if err := c.call(ctx, "create_index", http.MethodPost, "/indexes", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Handle, nil
}

// AtomsByIndexPage implements storage.Paginated.
func (c *Client) AtomsByIndexPage(ctx context.Context, indexID hasher.Handle, conds []storage.Condition, req storage.PageRequest) (storage.Page[hasher.Handle], error) {
	var page storage.Page[hasher.Handle]
	body := server.IndexQueryRequest{Conditions: conds, Cursor: req.Cursor, ChunkSize: req.ChunkSize}
	err := c.call(ctx, "query_index", http.MethodPost, "/indexes/"+url.PathEscape(string(indexID))+"/query", nil, body, &page)
	return page, err
}

func (c *Client) GetAtomsByIndex(ctx context.Context, indexID hasher.Handle, conds []storage.Condition) ([]hasher.Handle, error) {
	return collect(ctx, func(ctx context.Context, req storage.PageRequest) (storage.Page[hasher.Handle], error) {
		return c.AtomsByIndexPage(ctx, indexID, conds, req)
	})
}

// collect drains a paged endpoint. The first request asks for everything;
// later ones only happen if the server still returned a cursor.
func collect[T any](ctx context.Context, fetch func(context.Context, storage.PageRequest) (storage.Page[T], error)) ([]T, error) {
	var out []T
	var req storage.PageRequest
	for {
		page, err := fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Done() {
			return out, nil
		}
		req.Cursor = page.Cursor
	}
}

func pageQuery(req storage.PageRequest) url.Values {
	q := url.Values{}
	if req.Cursor != 0 {
		q.Set("cursor", strconv.FormatUint(req.Cursor, 10))
	}
	if req.ChunkSize != 0 {
		q.Set("chunk_size", strconv.Itoa(req.ChunkSize))
	}
	return q
}
