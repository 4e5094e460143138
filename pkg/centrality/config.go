// Package centrality computes per-entity centrality measures over the
// subgraph selected by a subgraph.FilterSet.
//
// Path based measures (betweenness, closeness, harmonic) and PageRank run on
// gonum graph algorithms. Relationship cost drives shortest paths;
// relationship importance weights PageRank and eigenvector. Degree measures
// count effective relationship multiplicity.
package centrality

import (
	"fmt"
	"strings"

	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// Interpretation tells whether relationship direction matters.
type Interpretation uint8

const (
	Undirected Interpretation = iota
	Directed
)

var interpretationNames = []string{"undirected", "directed"}

func (i Interpretation) String() string { return enumName(interpretationNames, int(i)) }

func (i Interpretation) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *Interpretation) UnmarshalText(b []byte) error {
	v, err := parseEnum("interpretation", interpretationNames, string(b))
	*i = Interpretation(v)
	return err
}

// Normalization post-processes every measure.
type Normalization uint8

const (
	// NoNormalization returns raw scores.
	NoNormalization Normalization = iota
	// StandardNormalization applies the textbook normalisation of each
	// measure, for instance dividing degree by n-1.
	StandardNormalization
	// MaxScaled divides every score of a measure by the largest one.
	MaxScaled
)

var normalizationNames = []string{"none", "standard", "max_scaled"}

func (n Normalization) String() string { return enumName(normalizationNames, int(n)) }

func (n Normalization) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *Normalization) UnmarshalText(b []byte) error {
	v, err := parseEnum("normalization", normalizationNames, string(b))
	*n = Normalization(v)
	return err
}

// Measure is a centrality measure.
type Measure uint8

const (
	Degree Measure = iota
	InDegree
	OutDegree
	Coreness
	Betweenness
	Closeness
	Harmonic
	Eigenvector
	PageRank
)

var measureNames = []string{
	"degree", "in_degree", "out_degree", "coreness", "betweenness",
	"closeness", "harmonic", "eigenvector", "pagerank",
}

func (m Measure) String() string { return enumName(measureNames, int(m)) }

func (m Measure) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Measure) UnmarshalText(b []byte) error {
	v, err := parseEnum("measure", measureNames, string(b))
	*m = Measure(v)
	return err
}

func (m Measure) usesPaths() bool {
	return m == Betweenness || m == Closeness || m == Harmonic
}

// Config describes a centrality computation.
type Config struct {
	Interpretation Interpretation `json:"interpretation" yaml:"interpretation"`
	// MultiEdgeFactor in [0,1] controls how parallel relationships combine:
	// 0 counts them as a single relationship, 1 accumulates them.
	MultiEdgeFactor   float64 `json:"multi_edge_factor" yaml:"multi_edge_factor"`
	DefaultCost       float64 `json:"default_cost" yaml:"default_cost"`
	DefaultImportance float64 `json:"default_importance" yaml:"default_importance"`
	// CostProperty and ImportanceProperty name numeric relationship
	// properties overriding the defaults per instance.
	CostProperty       string        `json:"cost_property,omitempty" yaml:"cost_property,omitempty"`
	ImportanceProperty string        `json:"importance_property,omitempty" yaml:"importance_property,omitempty"`
	Normalization      Normalization `json:"normalization" yaml:"normalization"`
	Measures           []Measure     `json:"measures" yaml:"measures"`

	// Damping and Tolerance tune PageRank and eigenvector iterations.
	Damping   float64 `json:"damping,omitempty" yaml:"damping,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

// DefaultConfig returns an undirected, unit-weight configuration computing
// degree only.
func DefaultConfig() Config {
	return Config{
		Interpretation:    Undirected,
		MultiEdgeFactor:   1,
		DefaultCost:       1,
		DefaultImportance: 1,
		Normalization:     NoNormalization,
		Measures:          []Measure{Degree},
		Damping:           0.85,
		Tolerance:         1e-8,
	}
}

// Validate checks the configuration. Coreness over directed relationships is
// reported as an unsupported configuration before anything else.
func (c Config) Validate() error {
	for _, m := range c.Measures {
		if m == Coreness && c.Interpretation == Directed {
			return kgerr.Unsupported("coreness requires the undirected interpretation")
		}
	}
	if len(c.Measures) == 0 {
		return kgerr.Validation("no measure requested")
	}
	seen := make(map[Measure]bool, len(c.Measures))
	for _, m := range c.Measures {
		if int(m) >= len(measureNames) {
			return kgerr.Validation(fmt.Sprintf("unknown measure %d", m))
		}
		if seen[m] {
			return kgerr.Validation("measure requested twice", m.String())
		}
		seen[m] = true
	}
	if int(c.Interpretation) >= len(interpretationNames) {
		return kgerr.Validation("unknown interpretation")
	}
	if int(c.Normalization) >= len(normalizationNames) {
		return kgerr.Validation("unknown normalization")
	}
	if c.MultiEdgeFactor < 0 || c.MultiEdgeFactor > 1 {
		return kgerr.Validation(fmt.Sprintf("multi-edge factor %g is outside [0,1]", c.MultiEdgeFactor), "multi_edge_factor")
	}
	if c.DefaultCost <= 0 {
		return kgerr.Validation("default cost must be positive", "default_cost")
	}
	if c.DefaultImportance <= 0 {
		return kgerr.Validation("default importance must be positive", "default_importance")
	}
	if c.Damping < 0 || c.Damping >= 1 {
		return kgerr.Validation("damping must be in [0,1)", "damping")
	}
	if c.Tolerance < 0 {
		return kgerr.Validation("tolerance must not be negative", "tolerance")
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Damping == 0 {
		c.Damping = d.Damping
	}
	if c.Tolerance == 0 {
		c.Tolerance = d.Tolerance
	}
	return c
}

func enumName(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("unknown(%d)", i)
}

func parseEnum(what string, names []string, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}
