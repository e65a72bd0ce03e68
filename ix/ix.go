// Package ix loads knowledge-base files into a backend.
//
// A knowledge-base file is YAML:
//
//	nodes:
//	  - {type: Concept, name: human}
//	links:
//	  - type: Inheritance
//	    targets:
//	      - {type: Concept, name: human}
//	      - {type: Concept, name: mammal}
//	indexes:
//	  - {type: Concept, field: legs}
//
// Link targets may nest further links, which are created as non-toplevel
// atoms, or refer to stored atoms by handle.
package ix

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
)

// ProgressInterval is how many links are added between progress logs.
const ProgressInterval = 1000

// Document is a parsed knowledge-base file.
type Document struct {
	Nodes   []storage.Params `yaml:"nodes"`
	Links   []storage.Params `yaml:"links"`
	Indexes []IndexSpec      `yaml:"indexes"`
}

// IndexSpec asks for a field index once the atoms are loaded.
type IndexSpec struct {
	Type  string `yaml:"type"`
	Field string `yaml:"field"`
}

// Result summarizes one load.
type Result struct {
	Path       string          `json:"path,omitempty"`
	DryRun     bool            `json:"dry_run"`
	NodesAdded int             `json:"nodes_added"`
	LinksAdded int             `json:"links_added"`
	Indexes    []hasher.Handle `json:"indexes,omitempty"`
	Before     storage.Counts  `json:"before"`
	After      storage.Counts  `json:"after"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
}

// Processor adds documents to one backend.
type Processor struct {
	backend storage.Backend
	dryRun  bool
	logger  *zap.SugaredLogger
}

// NewProcessor returns a processor for b. With dryRun set documents are
// checked but nothing is written.
func NewProcessor(b storage.Backend, dryRun bool, logger *zap.SugaredLogger) *Processor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Processor{backend: b, dryRun: dryRun, logger: logger}
}

// Parse decodes and checks a knowledge-base document. Unknown keys are
// rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, errors.NewInvalidRequestError("decode knowledge base: %v", err)
	}
	if err := doc.Check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Check validates every entry without touching a backend.
func (d *Document) Check() error {
	for i, p := range d.Nodes {
		if p.Handle == "" && (p.Type == "" || p.Name == "") {
			return errors.NewInvalidRequestError("nodes[%d]: a node needs a type and a name", i)
		}
		if err := storage.CheckNodeParams(p); err != nil {
			return errors.Wrapf(err, "nodes[%d]", i)
		}
	}
	for i, p := range d.Links {
		if p.Handle == "" && p.Type == "" {
			return errors.NewInvalidRequestError("links[%d]: a link needs a type", i)
		}
		if err := storage.CheckLinkParams(p); err != nil {
			return errors.Wrapf(err, "links[%d]", i)
		}
	}
	for i, ix := range d.Indexes {
		if ix.Type == "" {
			return errors.NewInvalidRequestError("indexes[%d]: missing type", i)
		}
		if err := storage.CheckFieldName(ix.Field); err != nil {
			return errors.Wrapf(err, "indexes[%d]", i)
		}
	}
	return nil
}

// LoadFile parses and loads the file at path.
func (p *Processor) LoadFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	res, err := p.Load(ctx, doc)
	if res != nil {
		res.Path = path
	}
	return res, err
}

// Load adds doc's nodes, then its links, then its indexes. On error the
// returned result reports what was added before the failure.
func (p *Processor) Load(ctx context.Context, doc *Document) (*Result, error) {
	res := &Result{DryRun: p.dryRun, StartTime: time.Now()}
	log := logger.FromContext(ctx, p.logger)

	before, err := p.backend.CountAtoms(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count atoms")
	}
	res.Before = before

	if p.dryRun {
		res.NodesAdded, res.LinksAdded = len(doc.Nodes), len(doc.Links)
		res.After = before
		return p.finish(res, "dry run: nothing written"), nil
	}

	for i, n := range doc.Nodes {
		if _, err := p.backend.AddNode(ctx, n); err != nil {
			return p.fail(res, errors.Wrapf(err, "add nodes[%d]", i))
		}
		res.NodesAdded++
	}
	for i, l := range doc.Links {
		if _, err := p.backend.AddLink(ctx, l); err != nil {
			return p.fail(res, errors.Wrapf(err, "add links[%d]", i))
		}
		res.LinksAdded++
		if res.LinksAdded%ProgressInterval == 0 {
			log.Infow("Loading links", logger.FieldCount, res.LinksAdded, "total", len(doc.Links))
		}
	}
	for _, ix := range doc.Indexes {
		id, err := p.backend.CreateFieldIndex(ctx, ix.Type, ix.Field)
		if err != nil {
			return p.fail(res, errors.Wrapf(err, "create index %s.%s", ix.Type, ix.Field))
		}
		res.Indexes = append(res.Indexes, id)
	}

	after, err := p.backend.CountAtoms(ctx)
	if err != nil {
		return p.fail(res, errors.Wrap(err, "count atoms"))
	}
	res.After = after

	log.Infow("Knowledge base loaded",
		logger.FieldNodeCount, res.NodesAdded,
		logger.FieldLinkCount, res.LinksAdded,
		logger.FieldDurationMS, time.Since(res.StartTime).Milliseconds(),
	)
	return p.finish(res, ""), nil
}

func (p *Processor) finish(res *Result, msg string) *Result {
	res.EndTime = time.Now()
	res.Success = true
	if msg == "" {
		msg = "loaded"
	}
	res.Message = msg
	return res
}

func (p *Processor) fail(res *Result, err error) (*Result, error) {
	res.EndTime = time.Now()
	res.Message = err.Error()
	return res, err
}
