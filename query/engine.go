package query

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/teranos/atomdb/assign"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/iterator"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
)

// Engine lowers query trees into iterators over one backend.
type Engine struct {
	backend      storage.Backend
	toplevelOnly bool
	chunkSize    int
	logger       *zap.SugaredLogger
	tracer       trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithToplevelOnly drops outermost link matches that were only created as
// nested targets.
func WithToplevelOnly(on bool) Option {
	return func(e *Engine) { e.toplevelOnly = on }
}

// WithChunkSize pages link lookups. 0 fetches each lookup in one page.
func WithChunkSize(n int) Option {
	return func(e *Engine) { e.chunkSize = n }
}

// WithLogger sets the logger. A nil logger keeps the engine silent.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an engine over b.
func NewEngine(b storage.Backend, opts ...Option) *Engine {
	e := &Engine{backend: b, tracer: otel.Tracer("github.com/teranos/atomdb/query")}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop().Sugar()
	}
	return e
}

// Execute validates q and returns the lazy answer stream. Every structural
// error is reported here, before any answer is pulled; a query that
// matches nothing yields an empty iterator.
func (e *Engine) Execute(ctx context.Context, q Query) (it iterator.Iterator[iterator.Answer], err error) {
	if err := validate(q, true); err != nil {
		return nil, err
	}
	if logger.QueryIDFromContext(ctx) == "" {
		ctx = logger.WithQueryID(ctx, uuid.NewString())
	}
	ctx, span := e.tracer.Start(ctx, "query.Execute",
		trace.WithAttributes(attribute.String("query", q.String())),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "lowering failed")
		}
		span.End()
	}()

	start := time.Now()
	it, err = e.lower(ctx, q, true)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, e.logger).Debugw("Query lowered",
		logger.FieldQuery, q.String(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return it, nil
}

// Collect executes q and materializes every answer.
func (e *Engine) Collect(ctx context.Context, q Query) ([]iterator.Answer, error) {
	it, err := e.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	answers, err := iterator.Collect(it)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, e.logger).Debugw("Query collected",
		logger.FieldQuery, q.String(),
		logger.FieldCount, len(answers),
	)
	return answers, nil
}

// validate checks the shape of q. outer is true for clauses that are not
// link targets.
func validate(q Query, outer bool) error {
	switch q := q.(type) {
	case Node:
		if q.Type == "" || q.Name == "" {
			return errors.NewQueryFormatError("node needs a type and a name")
		}
	case Variable:
		if q.Name == "" {
			return errors.NewQueryFormatError("variable needs a name")
		}
		if outer {
			return errors.NewQueryFormatError("variable %s can only appear as a link target", q)
		}
	case Link:
		if q.Type == "" {
			return errors.NewQueryFormatError("link needs a type")
		}
		if len(q.Targets) == 0 {
			return errors.NewMalformedPatternError("link %s has no targets", q.Type)
		}
		for _, t := range q.Targets {
			if err := validate(t, false); err != nil {
				return err
			}
		}
	case And, Or:
		if !outer {
			return errors.NewQueryFormatError("%s cannot be a link target", q)
		}
		clauses := clausesOf(q)
		if len(clauses) == 0 {
			return errors.NewQueryFormatError("%s has no clauses", q)
		}
		for _, c := range clauses {
			if err := validate(c, true); err != nil {
				return err
			}
		}
	case nil:
		return errors.NewQueryFormatError("empty query")
	default:
		return errors.NewQueryFormatError("unexpected query element %T", q)
	}
	return nil
}

func clausesOf(q Query) []Query {
	switch q := q.(type) {
	case And:
		return q.Clauses
	case Or:
		return q.Clauses
	}
	return nil
}

// lower builds the iterator for q. outer marks clauses whose link matches
// are subject to the toplevel filter.
func (e *Engine) lower(ctx context.Context, q Query, outer bool) (iterator.Iterator[iterator.Answer], error) {
	switch q := q.(type) {
	case Node:
		return e.lowerNode(ctx, q)
	case Link:
		positions := make([]iterator.Position, len(q.Targets))
		for i, t := range q.Targets {
			if v, ok := t.(Variable); ok {
				positions[i] = iterator.Var(v.Name)
				continue
			}
			sub, err := e.lower(ctx, t, false)
			if err != nil {
				return nil, err
			}
			positions[i] = iterator.Sub(sub)
		}
		lq, err := iterator.NewLazyQuery(ctx, e.backend, q.Type, positions, iterator.LazyOptions{
			Match:     storage.MatchOptions{ToplevelOnly: outer && e.toplevelOnly},
			ChunkSize: e.chunkSize,
			Logger:    e.logger,
		})
		if err != nil {
			return nil, err
		}
		return lq, nil
	case And:
		clauses, err := e.lowerAll(ctx, q.Clauses)
		if err != nil {
			return nil, err
		}
		if len(clauses) == 1 {
			return clauses[0], nil
		}
		return iterator.NewAnd(clauses...), nil
	case Or:
		clauses, err := e.lowerAll(ctx, q.Clauses)
		if err != nil {
			return nil, err
		}
		return iterator.NewOr(clauses...), nil
	}
	return nil, errors.NewQueryFormatError("unexpected query element %T", q)
}

func (e *Engine) lowerAll(ctx context.Context, qs []Query) ([]iterator.Iterator[iterator.Answer], error) {
	out := make([]iterator.Iterator[iterator.Answer], 0, len(qs))
	for _, q := range qs {
		it, err := e.lower(ctx, q, true)
		if err != nil {
			for _, done := range out {
				done.Close()
			}
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// lowerNode resolves a node now. An absent node is an empty sequence.
func (e *Engine) lowerNode(ctx context.Context, n Node) (iterator.Iterator[iterator.Answer], error) {
	h, err := e.backend.GetNodeHandle(ctx, n.Type, n.Name)
	if errors.IsNotFoundError(err) {
		logger.FromContext(ctx, e.logger).Debugw("Query node not found", logger.FieldType, n.Type, logger.FieldName, n.Name)
		return iterator.Empty[iterator.Answer](), nil
	}
	if err != nil {
		return nil, err
	}
	d, err := e.backend.GetAtomDeep(ctx, h)
	if errors.IsNotFoundError(err) {
		return iterator.Empty[iterator.Answer](), nil
	}
	if err != nil {
		return nil, err
	}
	return iterator.FromSlice([]iterator.Answer{{
		Subgraph:   iterator.Subgraph{Atom: d},
		Assignment: assign.Empty(),
	}}), nil
}
