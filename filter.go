package lazysearch

import "github.com/kailas-cloud/lazysearch/internal/domain/search/filter"

// Filter is an immutable boolean filter expression. The zero value matches
// everything and is dropped from requests.
type Filter = filter.Expression

// F builds a filter from field[__op] keys. Several keys combine with AND;
// the "or_" key holds a nested Q combined with OR.
func F(kw Q) (Filter, error) { return filter.FromMap(kw) }

// Term matches documents whose field equals v.
func Term(field string, v any) Filter { return filter.Term(field, v) }

// In matches documents whose field equals any of values.
func In(field string, values ...any) Filter { return filter.In(field, values...) }

// Range compares field against v with op (gt, gte, lt, lte).
func Range(field, op string, v any) (Filter, error) {
	return filter.Range(field, filter.Op(op), v)
}

// And combines two filters, flattening nested conjunctions.
func And(a, b Filter) Filter { return filter.And(a, b) }

// Or combines two filters, flattening nested disjunctions.
func Or(a, b Filter) Filter { return filter.Or(a, b) }

// Not negates f. Not(Not(f)) is f.
func Not(f Filter) Filter { return filter.Not(f) }
