package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/metrics"
)

// scanCheckInterval is how many records are scanned between context checks.
const scanCheckInterval = 1024

// QueryRequest selects named objects with a predicate. Each matching
// object becomes a one-column row.
type QueryRequest struct {
	// Query is a predicate over props, label, typeName and id. Values of
	// Bindings are visible as params. A blank query matches everything.
	Query     string         `json:"query"`
	TypeNames []string       `json:"type_names,omitempty"`
	Bindings  map[string]any `json:"bindings,omitempty"`
	// Limit caps the number of rows; 0 means no limit.
	Limit     int `json:"limit,omitempty"`
	BatchSize int `json:"batch_size,omitempty"`
	// ProvideProvenance asks for the records each row was derived from.
	// The datastore does not track provenance and rejects the request.
	ProvideProvenance bool `json:"provide_provenance,omitempty"`
}

// SearchTarget restricts a full-text search to entities, relationships or both.
type SearchTarget uint8

const (
	SearchBoth SearchTarget = iota
	SearchEntities
	SearchRelationships
)

var searchTargetNames = []string{"both", "entities", "relationships"}

func (t SearchTarget) String() string {
	if int(t) < len(searchTargetNames) {
		return searchTargetNames[t]
	}
	return fmt.Sprintf("unknown(%d)", t)
}

func (t SearchTarget) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *SearchTarget) UnmarshalText(b []byte) error {
	i := slices.Index(searchTargetNames, strings.ToLower(string(b)))
	if i < 0 {
		return fmt.Errorf("unknown search target %q", b)
	}
	*t = SearchTarget(i)
	return nil
}

// SearchRequest is a full-text search. Rows are [object, score] with
// scores scaled to (0, 1], best first.
type SearchRequest struct {
	Text       string       `json:"text"`
	TypeNames  []string     `json:"type_names,omitempty"`
	Target     SearchTarget `json:"target"`
	MaxResults int          `json:"max_results,omitempty"`
	BatchSize  int          `json:"batch_size,omitempty"`
}

// namedRecord is an entity or relationship record.
type namedRecord interface {
	rowValue() graphvalue.Value
}

type entityRow struct{ *core.EntityRecord }

type relationshipRow struct{ *core.RelationshipRecord }

func (r entityRow) rowValue() graphvalue.Value       { return r.Value() }
func (r relationshipRow) rowValue() graphvalue.Value { return r.Value() }

func (e *Engine) batchSize(requested int) int {
	if requested > 0 {
		return requested
	}
	return e.opts.CursorBatchSize
}

// SubmitQuery evaluates the query and opens a cursor session over the
// matching objects. It returns the session id.
func (e *Engine) SubmitQuery(ctx context.Context, req QueryRequest) (_ string, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.SubmitQuery", trace.WithAttributes(
		attribute.String("query", req.Query),
		attribute.StringSlice("type_names", req.TypeNames),
	))
	defer func() { endSpan(span, err) }()

	if req.ProvideProvenance {
		return "", kgerr.Query(req.Query, "provenance is not supported by this datastore")
	}
	if req.Limit < 0 || req.BatchSize < 0 {
		return "", kgerr.Validation("limit and batch size must not be negative", "limit", "batch_size")
	}
	pred, err := core.CompilePredicate(req.Query)
	if err != nil {
		return "", err
	}
	pred = pred.WithParams(req.Bindings)

	var matches []namedRecord
	err = e.Graph.Read(func(r core.Reader) error {
		names := req.TypeNames
		if len(names) == 0 {
			for _, t := range r.Types() {
				names = append(names, t.Name)
			}
		}
		var unknown []string
		for _, n := range names {
			if _, ok := r.Type(n); !ok {
				unknown = append(unknown, n)
			}
		}
		if len(unknown) > 0 {
			return kgerr.Validation("unknown type names", unknown...)
		}

		scanned := 0
		var scanErr error
		visit := func(rec namedRecord, match func() (bool, error)) bool {
			scanned++
			if scanned%scanCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					scanErr = kgerr.FromContext(err)
					return false
				}
			}
			ok, err := match()
			if err != nil {
				scanErr = err
				return false
			}
			if ok {
				matches = append(matches, rec)
			}
			return req.Limit == 0 || len(matches) < req.Limit
		}
		for _, n := range names {
			t, _ := r.Type(n)
			if t.Kind == core.EntityType {
				r.ScanEntities(n, func(rec *core.EntityRecord) bool {
					return visit(entityRow{rec}, func() (bool, error) { return pred.MatchEntity(rec) })
				})
			} else {
				r.ScanRelationships(n, func(rec *core.RelationshipRecord) bool {
					return visit(relationshipRow{rec}, func() (bool, error) { return pred.MatchRelationship(rec) })
				})
			}
			if scanErr != nil || (req.Limit > 0 && len(matches) >= req.Limit) {
				break
			}
		}
		return scanErr
	})
	if err != nil {
		return "", err
	}

	s := e.sessions.open("query", e.batchSize(req.BatchSize), len(matches), func(i int) graphvalue.Row {
		return graphvalue.Row{matches[i].rowValue()}
	})
	metrics.OpenCursors.Inc()
	span.SetAttributes(attribute.Int("rows", len(matches)))
	return s.id, nil
}

// SubmitSearch runs a full-text search and opens a cursor session over the
// hits. It returns the session id.
func (e *Engine) SubmitSearch(ctx context.Context, req SearchRequest) (_ string, err error) {
	_, span := e.tracer.Start(ctx, "engine.SubmitSearch", trace.WithAttributes(
		attribute.String("text", req.Text),
		attribute.String("target", req.Target.String()),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(req.Text) == "" {
		return "", kgerr.Validation("search text is empty", "text")
	}
	if req.MaxResults < 0 || req.BatchSize < 0 {
		return "", kgerr.Validation("max results and batch size must not be negative", "max_results", "batch_size")
	}
	var kinds []core.TypeKind
	switch req.Target {
	case SearchEntities:
		kinds = []core.TypeKind{core.EntityType}
	case SearchRelationships:
		kinds = []core.TypeKind{core.RelationshipType}
	}

	var (
		records []namedRecord
		scores  []float64
	)
	err = e.Graph.Read(func(r core.Reader) error {
		var unknown []string
		for _, n := range req.TypeNames {
			if _, ok := r.Type(n); !ok {
				unknown = append(unknown, n)
			}
		}
		if len(unknown) > 0 {
			return kgerr.Validation("unknown type names", unknown...)
		}

		hits := r.Search(req.Text, req.TypeNames, kinds)
		normalizeTextScores(hits)
		if req.MaxResults > 0 && len(hits) > req.MaxResults {
			hits = hits[:req.MaxResults]
		}
		var err error
		records, scores, err = materializeHits(r, hits)
		return err
	})
	if err != nil {
		return "", err
	}

	s := e.sessions.open("search", e.batchSize(req.BatchSize), len(records), func(i int) graphvalue.Row {
		return graphvalue.Row{records[i].rowValue(), graphvalue.Float64(scores[i])}
	})
	metrics.OpenCursors.Inc()
	span.SetAttributes(attribute.Int("rows", len(records)))
	return s.id, nil
}

// materializeHits resolves hits against the reader the search ran on.
func materializeHits(r core.Reader, hits []core.SearchHit) ([]namedRecord, []float64, error) {
	records := make([]namedRecord, 0, len(hits))
	scores := make([]float64, 0, len(hits))
	for _, h := range hits {
		var rec namedRecord
		if h.Kind == core.EntityType {
			if e, ok := r.Entity(h.ID); ok {
				rec = entityRow{e}
			}
		} else if rel, ok := r.Relationship(h.ID); ok {
			rec = relationshipRow{rel}
		}
		if rec == nil {
			return nil, nil, fmt.Errorf("search index references unknown %s %s", h.Kind, h.ID)
		}
		records = append(records, rec)
		scores = append(scores, h.Score)
	}
	return records, scores, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
