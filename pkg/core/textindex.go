package core

import (
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/textanalyzer"
)

// Standard parameters for the BM25 algorithm.
const (
	bm25k1 = 1.2
	bm25b  = 0.75
)

// SearchHit is a full-text match.
type SearchHit struct {
	ID       graphvalue.Identifier
	TypeName string
	Kind     TypeKind
	Score    float64
}

type textDoc struct {
	typeName string
	kind     TypeKind
	length   int
	terms    map[string]int
}

// textIndex is an inverted index over the label and the string properties
// of every record. Callers hold the graph lock.
type textIndex struct {
	analyzer textanalyzer.Analyzer
	postings map[string]map[graphvalue.Identifier]int
	docs     map[graphvalue.Identifier]*textDoc
	totalLen int
}

func newTextIndex(analyzer textanalyzer.Analyzer) *textIndex {
	if analyzer == nil {
		analyzer, _ = textanalyzer.New("")
	}
	return &textIndex{
		analyzer: analyzer,
		postings: make(map[string]map[graphvalue.Identifier]int),
		docs:     make(map[graphvalue.Identifier]*textDoc),
	}
}

func (ti *textIndex) add(id graphvalue.Identifier, typeName string, kind TypeKind, label string, props map[string]any) {
	tokens := ti.analyzer.Analyze(label)
	for _, k := range slices.Sorted(maps.Keys(props)) {
		if s, ok := props[k].(string); ok {
			tokens = append(tokens, ti.analyzer.Analyze(s)...)
		}
	}
	if len(tokens) == 0 {
		return
	}
	doc := &textDoc{typeName: typeName, kind: kind, length: len(tokens), terms: make(map[string]int)}
	for _, tok := range tokens {
		doc.terms[tok]++
	}
	for tok, tf := range doc.terms {
		list, ok := ti.postings[tok]
		if !ok {
			list = make(map[graphvalue.Identifier]int)
			ti.postings[tok] = list
		}
		list[id] = tf
	}
	ti.docs[id] = doc
	ti.totalLen += doc.length
}

func (ti *textIndex) remove(id graphvalue.Identifier) {
	doc, ok := ti.docs[id]
	if !ok {
		return
	}
	for tok := range doc.terms {
		list := ti.postings[tok]
		delete(list, id)
		if len(list) == 0 {
			delete(ti.postings, tok)
		}
	}
	ti.totalLen -= doc.length
	delete(ti.docs, id)
}

// search scores every document containing at least one query token with
// BM25 and returns them by descending score, ties broken by identifier.
func (ti *textIndex) search(query string, typeNames []string, kinds []TypeKind) []SearchHit {
	queryTokens := ti.analyzer.Analyze(query)
	if len(queryTokens) == 0 || len(ti.docs) == 0 {
		return nil
	}

	accept := func(doc *textDoc) bool {
		if len(kinds) > 0 && !slices.Contains(kinds, doc.kind) {
			return false
		}
		return len(typeNames) == 0 || slices.Contains(typeNames, doc.typeName)
	}

	avgLen := float64(ti.totalLen) / float64(len(ti.docs))
	scores := make(map[graphvalue.Identifier]float64)
	for _, tok := range queryTokens {
		list := ti.postings[tok]
		if len(list) == 0 {
			continue
		}
		idf := math.Log(1 + (float64(len(ti.docs))-float64(len(list))+0.5)/(float64(len(list))+0.5))
		for id, tf := range list {
			doc := ti.docs[id]
			if !accept(doc) {
				continue
			}
			tfFloat := float64(tf)
			numerator := tfFloat * (bm25k1 + 1)
			denominator := tfFloat + bm25k1*(1-bm25b+bm25b*(float64(doc.length)/avgLen))
			scores[id] += idf * (numerator / denominator)
		}
	}

	hits := make([]SearchHit, 0, len(scores))
	for id, score := range scores {
		doc := ti.docs[id]
		hits = append(hits, SearchHit{ID: id, TypeName: doc.typeName, Kind: doc.kind, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.String() < hits[j].ID.String()
	})
	return hits
}
