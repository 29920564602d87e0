package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/metrics"
)

// Op is a predicate operator.
type Op string

const (
	OpEqual     Op = "="
	OpNotEqual  Op = "!="
	OpContains  Op = "~"
	OpPrefix    Op = "prefix"
	OpSuffix    Op = "suffix"
	OpGreater   Op = ">"
	OpGreaterEq Op = ">="
	OpLess      Op = "<"
	OpLessEq    Op = "<="
	OpExists    Op = "exists"
	OpExpr      Op = "expr"
)

// Predicate is one compiled filter clause: a dotted path into the event
// payload, an operator, and a literal.
type Predicate struct {
	Path    string
	Op      Op
	Literal string

	path []string    // split Path
	prog *vm.Program // compiled program for OpExpr
}

// Filter evaluates a list of predicates against events. The list is
// conjunctive by default; a leading "any:" element makes it disjunctive.
// A Filter is safe for concurrent use.
type Filter struct {
	name        string
	predicates  []Predicate
	disjunctive bool
	metrics     Metrics
}

// New parses a filter expression list. The name labels the filter in
// metrics output.
func New(name string, exprs []string) (*Filter, error) {
	f := &Filter{name: name}

	rest := exprs
	if len(rest) > 0 && strings.TrimSpace(rest[0]) == "any:" {
		f.disjunctive = true
		rest = rest[1:]
	}
	for _, raw := range rest {
		p, err := parsePredicate(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse filter %q: %w", raw, err)
		}
		f.predicates = append(f.predicates, p)
	}
	return f, nil
}

// Name returns the filter's metrics label.
func (f *Filter) Name() string { return f.name }

// Empty reports whether the filter has no predicates. An empty filter
// passes everything.
func (f *Filter) Empty() bool { return len(f.predicates) == 0 }

// Match evaluates the filter against an event and updates the counters.
func (f *Filter) Match(e event.Event) bool {
	f.metrics.total.Add(1)
	metrics.FilterEvents.WithLabelValues(f.name, "total").Inc()

	pass := f.evaluate(e)
	if pass {
		f.metrics.passed.Add(1)
		metrics.FilterEvents.WithLabelValues(f.name, "passed").Inc()
	} else {
		f.metrics.filtered.Add(1)
		metrics.FilterEvents.WithLabelValues(f.name, "filtered").Inc()
	}
	return pass
}

// Metrics returns a snapshot of the filter counters.
func (f *Filter) Metrics() Snapshot { return f.metrics.Snapshot() }

// ResetMetrics zeroes the filter counters.
func (f *Filter) ResetMetrics() { f.metrics.Reset() }

func (f *Filter) evaluate(e event.Event) bool {
	if len(f.predicates) == 0 {
		return true
	}
	for i := range f.predicates {
		match := f.predicates[i].match(e)
		if f.disjunctive && match {
			return true
		}
		if !f.disjunctive && !match {
			return false
		}
	}
	return !f.disjunctive
}

// parsePredicate scans one clause. Recognized forms, checked in order:
//
//	expr:<expression>      compiled with expr-lang against the payload
//	path exists            path resolves to a non-null value
//	path_prefix=literal    string prefix on path
//	path_suffix=literal    string suffix on path
//	path!=lit  path>=lit  path<=lit  path~lit  path=lit  path>lit  path<lit
func parsePredicate(raw string) (Predicate, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Predicate{}, fmt.Errorf("empty predicate")
	}

	if src, ok := strings.CutPrefix(s, "expr:"); ok {
		prog, err := expr.Compile(src, expr.AllowUndefinedVariables())
		if err != nil {
			return Predicate{}, fmt.Errorf("invalid expression: %w", err)
		}
		return Predicate{Path: src, Op: OpExpr, prog: prog}, nil
	}

	if path, ok := strings.CutSuffix(s, " exists"); ok {
		return newPathPredicate(path, OpExists, "")
	}

	// The leftmost operator wins so literals containing operator
	// characters stay intact; two-character tokens are listed before
	// their one-character prefixes to break ties at the same position.
	candidates := []struct {
		tok string
		op  Op
	}{
		{"!=", OpNotEqual},
		{">=", OpGreaterEq},
		{"<=", OpLessEq},
		{"=", OpEqual},
		{"~", OpContains},
		{">", OpGreater},
		{"<", OpLess},
	}
	bestIdx, bestTok, bestOp := -1, "", Op("")
	for _, cand := range candidates {
		idx := strings.Index(s, cand.tok)
		if idx <= 0 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx {
			bestIdx, bestTok, bestOp = idx, cand.tok, cand.op
		}
	}
	if bestIdx == -1 {
		return Predicate{}, fmt.Errorf("no operator found")
	}

	path := strings.TrimSpace(s[:bestIdx])
	lit := s[bestIdx+len(bestTok):]
	op := bestOp
	if op == OpEqual {
		if p, ok := strings.CutSuffix(path, "_prefix"); ok {
			path, op = p, OpPrefix
		} else if p, ok := strings.CutSuffix(path, "_suffix"); ok {
			path, op = p, OpSuffix
		}
	}
	return newPathPredicate(path, op, lit)
}

func newPathPredicate(path string, op Op, lit string) (Predicate, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Predicate{}, fmt.Errorf("empty path")
	}
	return Predicate{
		Path:    path,
		Op:      op,
		Literal: lit,
		path:    strings.Split(path, "."),
	}, nil
}

func (p *Predicate) match(e event.Event) bool {
	if p.Op == OpExpr {
		out, err := expr.Run(p.prog, exprEnv(e))
		if err != nil {
			return false
		}
		b, ok := out.(bool)
		return ok && b
	}

	val, found := Resolve(e.Data, p.path)
	switch p.Op {
	case OpExists:
		return found && val != nil
	case OpNotEqual:
		if !found {
			return true
		}
		return stringify(val) != p.Literal
	}
	if !found || val == nil {
		return false
	}
	switch p.Op {
	case OpEqual:
		return stringify(val) == p.Literal
	case OpContains:
		return strings.Contains(stringify(val), p.Literal)
	case OpPrefix:
		return strings.HasPrefix(stringify(val), p.Literal)
	case OpSuffix:
		return strings.HasSuffix(stringify(val), p.Literal)
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		lhs, lok := toFloat(val)
		rhs, rok := toFloat(p.Literal)
		if !lok || !rok {
			return false
		}
		switch p.Op {
		case OpGreater:
			return lhs > rhs
		case OpGreaterEq:
			return lhs >= rhs
		case OpLess:
			return lhs < rhs
		default:
			return lhs <= rhs
		}
	}
	return false
}

// Resolve walks a dotted path through the payload tree. Components are
// object keys; integer components index arrays.
func Resolve(data map[string]any, path []string) (any, bool) {
	var cur any = data
	for _, comp := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[comp]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(comp)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func exprEnv(e event.Event) map[string]any {
	return map[string]any{
		"timestamp": e.Timestamp,
		"source":    e.Source,
		"pid":       int64(e.PID),
		"comm":      e.Comm,
		"data":      e.Data,
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// Render integral floats without the trailing ".0" json decoding
		// would otherwise leak into comparisons.
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
