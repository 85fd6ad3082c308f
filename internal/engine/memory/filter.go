package memory

import (
	"fmt"
)

// single unpacks a one-key object such as {"term": {...}}.
func single(v any) (string, any, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, fmt.Errorf("%w: expected a single-key object, got %v", ErrUnsupported, v)
	}
	var (
		kind string
		body any
	)
	for kind, body = range m {
	}
	return kind, body, nil
}

// fieldBody unpacks {"field": value}.
func fieldBody(kind string, body any) (string, any, error) {
	k, v, err := single(body)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", kind, err)
	}
	return k, v, nil
}

func list(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return []any{v}
}

// matchFilter evaluates a filter clause against a stored document.
func matchFilter(clause any, src map[string]any) (bool, error) {
	kind, body, err := single(clause)
	if err != nil {
		return false, fmt.Errorf("filter: %w", err)
	}

	switch kind {
	case "match_all":
		return true, nil
	case "term":
		field, want, err := fieldBody(kind, body)
		if err != nil {
			return false, err
		}
		return termMatches(src[field], want), nil
	case "in", "terms":
		field, wants, err := fieldBody(kind, body)
		if err != nil {
			return false, err
		}
		for _, w := range list(wants) {
			if termMatches(src[field], w) {
				return true, nil
			}
		}
		return false, nil
	case "prefix":
		field, want, err := fieldBody(kind, body)
		if err != nil {
			return false, err
		}
		return len(prefixTokens(src[field], want)) > 0, nil
	case "range":
		field, bounds, err := fieldBody(kind, body)
		if err != nil {
			return false, err
		}
		return rangeMatches(src[field], bounds)
	case "and", "or":
		operands := list(body)
		for _, op := range operands {
			ok, err := matchFilter(op, src)
			if err != nil {
				return false, err
			}
			if ok == (kind == "or") {
				return ok, nil
			}
		}
		return kind == "and", nil
	case "not":
		inner := body
		if m, ok := body.(map[string]any); ok {
			if f, ok := m["filter"]; ok {
				inner = f
			}
		}
		ok, err := matchFilter(inner, src)
		return !ok, err
	default:
		return false, fmt.Errorf("%w: filter %q", ErrUnsupported, kind)
	}
}

// termMatches reports whether a stored value equals want or contains it as
// a token.
func termMatches(docVal, want any) bool {
	if equal(docVal, want) {
		return true
	}
	w, ok := want.(string)
	if !ok {
		return false
	}
	toks := tokenize(w)
	if len(toks) != 1 {
		return false
	}
	return len(tokensWhere(docVal, func(t string) bool { return t == toks[0] })) > 0
}

func rangeMatches(docVal, bounds any) (bool, error) {
	m, ok := bounds.(map[string]any)
	if !ok {
		return false, fmt.Errorf("%w: range expects an object, got %v", ErrUnsupported, bounds)
	}
	for op, bound := range m {
		switch op {
		case "gt", "gte", "lt", "lte":
			if !inRange(docVal, op, bound) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("%w: range operator %q", ErrUnsupported, op)
		}
	}
	return true, nil
}
