package filter

import (
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/kailas-cloud/lazysearch/internal/domain"
)

// OrKey is the reserved map key whose value is a nested map of OR-ed conditions.
const OrKey = "or_"

// Kind discriminates the variants of an Expression.
type Kind uint8

// Expression kinds. KindNone is the zero value and the identity filter.
const (
	KindNone Kind = iota
	KindTerm
	KindIn
	KindRange
	KindAnd
	KindOr
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTerm:
		return "term"
	case KindIn:
		return "in"
	case KindRange:
		return "range"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Op is a key suffix operator ("field__op").
type Op string

// Operators understood by filters and queries.
const (
	OpNone       Op = ""
	OpIn         Op = "in"
	OpGT         Op = "gt"
	OpGTE        Op = "gte"
	OpLT         Op = "lt"
	OpLTE        Op = "lte"
	OpStartsWith Op = "startswith"
	OpText       Op = "text"
	OpFuzzy      Op = "fuzzy"
)

// IsRange reports whether op is one of gt, gte, lt, lte.
func (op Op) IsRange() bool {
	switch op {
	case OpGT, OpGTE, OpLT, OpLTE:
		return true
	default:
		return false
	}
}

func (op Op) known() bool {
	switch op {
	case OpIn, OpGT, OpGTE, OpLT, OpLTE, OpStartsWith, OpText, OpFuzzy:
		return true
	default:
		return false
	}
}

// SplitKey splits "field__op" into its field and operator. A suffix that is
// not a known operator stays part of the field name.
func SplitKey(key string) (string, Op) {
	for i := len(key) - 2; i > 0; i-- {
		if key[i] != '_' || key[i+1] != '_' {
			continue
		}
		if op := Op(key[i+2:]); op.known() {
			return key[:i], op
		}
		break
	}
	return key, OpNone
}

// Expression is an immutable boolean filter: a leaf condition on one field
// or an and/or/not composite of other expressions.
type Expression struct {
	kind     Kind
	field    string
	op       Op
	value    any
	operands []Expression
}

// None returns the identity expression. It is neutral under And and Or and
// never serialized.
func None() Expression { return Expression{} }

// Term creates an equality condition.
func Term(field string, value any) Expression {
	return Expression{kind: KindTerm, field: field, value: value}
}

// In creates a set membership condition.
func In(field string, values ...any) Expression {
	return Expression{kind: KindIn, field: field, value: slices.Clone(values)}
}

// Range creates a comparison condition. op must satisfy Op.IsRange.
func Range(field string, op Op, value any) (Expression, error) {
	if !op.IsRange() {
		return Expression{}, fmt.Errorf("%w: %q is not a range operator", domain.ErrInvalidFilter, op)
	}
	return Expression{kind: KindRange, field: field, op: op, value: value}, nil
}

// FromMap builds an expression from "field[__op]" keys. Several keys combine
// as a flat AND; the reserved or_ key holds a nested map of OR-ed conditions.
// Keys are processed in sorted order.
func FromMap(kw map[string]any) (Expression, error) {
	items, err := fromMap(kw)
	if err != nil {
		return Expression{}, err
	}
	switch len(items) {
	case 0:
		return None(), nil
	case 1:
		return items[0], nil
	default:
		return Expression{kind: KindAnd, operands: items}, nil
	}
}

func fromMap(kw map[string]any) ([]Expression, error) {
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Expression, 0, len(keys))
	for _, key := range keys {
		e, err := fromPair(key, kw[key])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func fromPair(key string, val any) (Expression, error) {
	if key == OrKey {
		nested, ok := val.(map[string]any)
		if !ok {
			return Expression{}, fmt.Errorf("%w: %s expects a map, got %T", domain.ErrInvalidFilter, OrKey, val)
		}
		items, err := fromMap(nested)
		if err != nil {
			return Expression{}, err
		}
		if len(items) == 0 {
			return None(), nil
		}
		return Expression{kind: KindOr, operands: items}, nil
	}

	field, op := SplitKey(key)
	switch {
	case op == OpNone:
		return Term(field, val), nil
	case op == OpIn:
		values, ok := toSlice(val)
		if !ok {
			return Expression{}, fmt.Errorf("%w: %s expects a list, got %T", domain.ErrInvalidFilter, key, val)
		}
		return In(field, values...), nil
	case op.IsRange():
		return Range(field, op, val)
	default:
		return Expression{}, fmt.Errorf("%w: operator %q is not supported in filters", domain.ErrInvalidFilter, op)
	}
}

func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// And combines a and b with AND, flattening into an existing AND composite.
func And(a, b Expression) Expression { return combine(KindAnd, a, b) }

// Or combines a and b with OR, flattening into an existing OR composite.
func Or(a, b Expression) Expression { return combine(KindOr, a, b) }

// Not negates e. Negating a negation returns the inner expression.
func Not(e Expression) Expression {
	switch e.kind {
	case KindNone:
		return e
	case KindNot:
		return e.operands[0]
	default:
		return Expression{kind: KindNot, operands: []Expression{e}}
	}
}

// And is the method form of And.
func (e Expression) And(o Expression) Expression { return And(e, o) }

// Or is the method form of Or.
func (e Expression) Or(o Expression) Expression { return Or(e, o) }

// Not is the method form of Not.
func (e Expression) Not() Expression { return Not(e) }

func combine(kind Kind, a, b Expression) Expression {
	if a.kind == KindNone {
		return b
	}
	if b.kind == KindNone {
		return a
	}
	if a.kind == kind {
		ops := make([]Expression, len(a.operands), len(a.operands)+1)
		copy(ops, a.operands)
		if b.kind == kind && len(b.operands) == 1 {
			return Expression{kind: kind, operands: append(ops, b.operands[0])}
		}
		return Expression{kind: kind, operands: append(ops, b)}
	}
	if b.kind == kind {
		ops := make([]Expression, 0, len(b.operands)+1)
		ops = append(ops, a)
		ops = append(ops, b.operands...)
		return Expression{kind: kind, operands: ops}
	}
	return Expression{kind: kind, operands: []Expression{a, b}}
}

// Kind returns the variant of the expression.
func (e Expression) Kind() Kind { return e.kind }

// IsNone reports whether e is the identity expression.
func (e Expression) IsNone() bool { return e.kind == KindNone }

// Field returns the leaf field name.
func (e Expression) Field() string { return e.field }

// Op returns the range operator of a range leaf.
func (e Expression) Op() Op { return e.op }

// Value returns the leaf value. For In leaves it is a []any.
func (e Expression) Value() any { return e.value }

// Operands returns a copy of the composite operands.
func (e Expression) Operands() []Expression { return slices.Clone(e.operands) }

// Clause serializes the expression into the engine's filter shape.
// The identity expression serializes to nil.
func (e Expression) Clause() map[string]any {
	switch e.kind {
	case KindNone:
		return nil
	case KindTerm:
		return map[string]any{"term": map[string]any{e.field: e.value}}
	case KindIn:
		return map[string]any{"in": map[string]any{e.field: e.value}}
	case KindRange:
		return map[string]any{"range": map[string]any{e.field: map[string]any{string(e.op): e.value}}}
	case KindAnd, KindOr:
		clauses := make([]any, 0, len(e.operands))
		for _, o := range e.operands {
			if c := o.Clause(); c != nil {
				clauses = append(clauses, c)
			}
		}
		return map[string]any{e.kind.String(): clauses}
	case KindNot:
		return map[string]any{"not": map[string]any{"filter": e.operands[0].Clause()}}
	default:
		panic(fmt.Sprintf("filter: unhandled kind %s", e.kind))
	}
}
