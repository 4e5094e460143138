package centrality

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sanonone/kektorgraph/pkg/graphvalue"
)

// Results holds the scores of a computation in a columnar layout: the score
// of Measures()[m] for EntityIDs()[i] is Scores()[m*len(EntityIDs())+i].
// Results are immutable and safe for concurrent reads.
type Results struct {
	entityIDs []graphvalue.Identifier
	typeNames []string
	measures  []Measure
	scores    []float64

	index  map[graphvalue.Identifier]int
	byType map[string][]graphvalue.Identifier
}

func newResults(ids []graphvalue.Identifier, typeNames []string, measures []Measure, scores []float64) (*Results, error) {
	if len(ids) != len(typeNames) {
		return nil, fmt.Errorf("centrality results: %d ids but %d type names", len(ids), len(typeNames))
	}
	if len(scores) != len(ids)*len(measures) {
		return nil, fmt.Errorf("centrality results: %d scores for %d ids and %d measures", len(scores), len(ids), len(measures))
	}
	r := &Results{
		entityIDs: ids,
		typeNames: typeNames,
		measures:  measures,
		scores:    scores,
		index:     make(map[graphvalue.Identifier]int, len(ids)),
		byType:    make(map[string][]graphvalue.Identifier),
	}
	for i, id := range ids {
		if _, dup := r.index[id]; dup {
			return nil, fmt.Errorf("centrality results: duplicate entity %s", id)
		}
		r.index[id] = i
		r.byType[typeNames[i]] = append(r.byType[typeNames[i]], id)
	}
	return r, nil
}

// EntityIDs returns the scored entities in result order.
func (r *Results) EntityIDs() []graphvalue.Identifier { return slices.Clone(r.entityIDs) }

// Measures returns the measures in request order.
func (r *Results) Measures() []Measure { return slices.Clone(r.measures) }

// Scores returns the flat, measure-major score array.
func (r *Results) Scores() []float64 { return slices.Clone(r.scores) }

// Len returns the number of scored entities.
func (r *Results) Len() int { return len(r.entityIDs) }

// ScoresFor returns the scores of one entity in measure order.
func (r *Results) ScoresFor(id graphvalue.Identifier) ([]float64, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(r.measures))
	for m := range r.measures {
		out[m] = r.scores[m*len(r.entityIDs)+i]
	}
	return out, true
}

// Score returns a single score.
func (r *Results) Score(id graphvalue.Identifier, m Measure) (float64, bool) {
	i, ok := r.index[id]
	if !ok {
		return 0, false
	}
	mi := slices.Index(r.measures, m)
	if mi < 0 {
		return 0, false
	}
	return r.scores[mi*len(r.entityIDs)+i], true
}

// NamedTypesOf returns the named types under which the entity was scored.
func (r *Results) NamedTypesOf(id graphvalue.Identifier) []string {
	i, ok := r.index[id]
	if !ok {
		return nil
	}
	return []string{r.typeNames[i]}
}

// IDsForNamedType returns the scored entities of one named type, in result order.
func (r *Results) IDsForNamedType(typeName string) []graphvalue.Identifier {
	return slices.Clone(r.byType[typeName])
}

// NamedTypes returns the named types present in the results, sorted.
func (r *Results) NamedTypes() []string {
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

type resultsJSON struct {
	EntityIDs []graphvalue.Identifier `json:"entity_ids"`
	TypeNames []string                `json:"entity_types"`
	Measures  []Measure               `json:"measures"`
	Scores    []float64               `json:"scores"`
}

func (r *Results) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultsJSON{
		EntityIDs: r.entityIDs,
		TypeNames: r.typeNames,
		Measures:  r.measures,
		Scores:    r.scores,
	})
}

func (r *Results) UnmarshalJSON(data []byte) error {
	var w resultsJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	built, err := newResults(w.EntityIDs, w.TypeNames, w.Measures, w.Scores)
	if err != nil {
		return err
	}
	*r = *built
	return nil
}
