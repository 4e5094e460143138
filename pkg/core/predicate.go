package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"

	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// Predicates are CEL expressions evaluated against a single record. The
// variables in scope are:
//
//	props       map(string, dyn)  the record properties
//	label       string            entity label, empty for relationships
//	typeName    string            the named type
//	id          string            the identifier in text form
//	origin      string            relationship origin, empty for entities
//	destination string            relationship destination, empty for entities
//	params      map(string, dyn)  caller supplied bindings
//
// Example: `props.capacity > 100 && label.startsWith("Plant")`.
//
// A property missing from props makes the predicate false for that record
// rather than failing the whole evaluation.

var predicateEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("props", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("label", cel.StringType),
		cel.Variable("typeName", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("origin", cel.StringType),
		cel.Variable("destination", cel.StringType),
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
	)
})

// Predicate is a compiled record predicate. A nil *Predicate matches
// every record.
type Predicate struct {
	source  string
	program cel.Program
	params  map[string]any

	// propPaths holds the node ids of the props.x and props["x"] accesses.
	propPaths map[int64]struct{}
}

// CompilePredicate compiles source. Blank sources yield a nil predicate.
// Syntax and type errors are reported as query errors.
func CompilePredicate(source string) (*Predicate, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	env, err := predicateEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to build predicate environment: %w", err)
	}
	ast, iss := env.Compile(source)
	if iss != nil && iss.Err() != nil {
		return nil, kgerr.Query(source, iss.Err().Error())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, kgerr.Query(source, fmt.Sprintf("predicate must evaluate to bool, not %s", out))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, kgerr.Query(source, err.Error())
	}
	return &Predicate{source: source, program: prg, propPaths: propertyAccesses(ast)}, nil
}

// propertyAccesses collects the ids of field and index expressions rooted at
// the props variable. Presence tests are left out: has() never fails.
func propertyAccesses(ast *cel.Ast) map[int64]struct{} {
	out := make(map[int64]struct{})
	matches := celast.MatchDescendants(celast.NavigateAST(ast.NativeRep()), func(e celast.NavigableExpr) bool {
		switch e.Kind() {
		case celast.SelectKind:
			return !e.AsSelect().IsTestOnly()
		case celast.CallKind:
			return e.AsCall().FunctionName() == operators.Index
		}
		return false
	})
	for _, e := range matches {
		if rootIdent(e) == "props" {
			out[e.ID()] = struct{}{}
		}
	}
	return out
}

// rootIdent follows field and index operands down to the variable they
// start from. Anything else yields "".
func rootIdent(e celast.Expr) string {
	for {
		switch e.Kind() {
		case celast.IdentKind:
			return e.AsIdent()
		case celast.SelectKind:
			e = e.AsSelect().Operand()
		case celast.CallKind:
			call := e.AsCall()
			if call.FunctionName() != operators.Index || len(call.Args()) != 2 {
				return ""
			}
			e = call.Args()[0]
		default:
			return ""
		}
	}
}

// Source returns the predicate text.
func (p *Predicate) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// WithParams returns a copy of p evaluated with the given bindings.
func (p *Predicate) WithParams(params map[string]any) *Predicate {
	if p == nil {
		return nil
	}
	cp := *p
	cp.params = normalizeProps(params)
	return &cp
}

// MatchEntity evaluates the predicate on an entity.
func (p *Predicate) MatchEntity(e *EntityRecord) (bool, error) {
	if p == nil {
		return true, nil
	}
	return p.eval(map[string]any{
		"props":       propsOrEmpty(e.Props),
		"label":       e.Label,
		"typeName":    e.TypeName,
		"id":          e.ID.String(),
		"origin":      "",
		"destination": "",
	})
}

// MatchRelationship evaluates the predicate on a relationship.
func (p *Predicate) MatchRelationship(r *RelationshipRecord) (bool, error) {
	if p == nil {
		return true, nil
	}
	return p.eval(map[string]any{
		"props":       propsOrEmpty(r.Props),
		"label":       "",
		"typeName":    r.TypeName,
		"id":          r.ID.String(),
		"origin":      r.Origin.String(),
		"destination": r.Destination.String(),
	})
}

func (p *Predicate) eval(vars map[string]any) (bool, error) {
	vars["params"] = propsOrEmpty(p.params)
	out, _, err := p.program.Eval(vars)
	if err != nil {
		if p.missingProperty(err) {
			return false, nil
		}
		return false, kgerr.Query(p.source, err.Error())
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, kgerr.Query(p.source, fmt.Sprintf("predicate returned %s, not bool", out.Type().TypeName()))
	}
	return b, nil
}

// missingProperty reports whether err was raised by a props access, the only
// place a record without the property can fail.
func (p *Predicate) missingProperty(err error) bool {
	var celErr *types.Err
	if !errors.As(err, &celErr) {
		return false
	}
	_, ok := p.propPaths[celErr.NodeID()]
	return ok
}

func propsOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
