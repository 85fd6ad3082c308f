package memory

import (
	"fmt"
	"strings"
)

// scorer evaluates query clauses against one document, summing the boosts of
// matched leaves and recording matched tokens for highlighting.
type scorer struct {
	src     map[string]any
	score   float64
	matched map[string]map[string]struct{} // field -> tokens
}

func newScorer(src map[string]any) *scorer {
	return &scorer{src: src, matched: map[string]map[string]struct{}{}}
}

func (s *scorer) record(field string, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	set, ok := s.matched[field]
	if !ok {
		set = map[string]struct{}{}
		s.matched[field] = set
	}
	for _, t := range tokens {
		set[t] = struct{}{}
	}
}

// unboost splits a {"boost": w, "value"|"query": v} wrapper.
func unboost(v any) (any, float64) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, 1
	}
	w, hasBoost := m["boost"]
	if !hasBoost {
		return v, 1
	}
	boost, _ := toFloat(w)
	for _, key := range []string{"query", "value"} {
		if inner, ok := m[key]; ok {
			return inner, boost
		}
	}
	return v, boost
}

func (s *scorer) eval(clause any) (bool, error) {
	kind, body, err := single(clause)
	if err != nil {
		return false, fmt.Errorf("query: %w", err)
	}

	if kind == "bool" {
		return s.evalBool(body)
	}
	if kind == "match_all" {
		s.score++
		return true, nil
	}

	field, raw, err := fieldBody(kind, body)
	if err != nil {
		return false, err
	}
	value, boost := unboost(raw)
	docVal := s.src[field]

	var (
		ok     bool
		tokens []string
	)
	switch kind {
	case "term":
		ok = termMatches(docVal, value)
		if ok {
			tokens = tokensOfValue(docVal, value)
		}
	case "terms":
		for _, w := range list(value) {
			if termMatches(docVal, w) {
				ok = true
				tokens = append(tokens, tokensOfValue(docVal, w)...)
			}
		}
	case "prefix":
		tokens = prefixTokens(docVal, value)
		ok = len(tokens) > 0
	case "match":
		want := map[string]struct{}{}
		for _, t := range tokenize(fmt.Sprint(value)) {
			want[t] = struct{}{}
		}
		tokens = tokensWhere(docVal, func(t string) bool { _, hit := want[t]; return hit })
		ok = len(tokens) > 0
	case "fuzzy":
		term := strings.ToLower(fmt.Sprint(value))
		limit := autoFuzziness(term)
		tokens = tokensWhere(docVal, func(t string) bool { return levenshtein(t, term) <= limit })
		ok = len(tokens) > 0
	case "range":
		ok, err = rangeMatches(docVal, value)
		if err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("%w: query %q", ErrUnsupported, kind)
	}

	if ok {
		s.score += boost
		s.record(field, tokens)
	}
	return ok, nil
}

func (s *scorer) evalBool(body any) (bool, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return false, fmt.Errorf("%w: bool expects an object, got %v", ErrUnsupported, body)
	}

	must := list(orEmpty(m["must"]))
	for _, c := range must {
		ok, err := s.eval(c)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, c := range list(orEmpty(m["must_not"])) {
		ok, err := newScorer(s.src).eval(c)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}

	should := list(orEmpty(m["should"]))
	if len(should) == 0 {
		return true, nil
	}
	hit := false
	for _, c := range should {
		ok, err := s.eval(c)
		if err != nil {
			return false, err
		}
		hit = hit || ok
	}
	// should is optional next to must clauses.
	return hit || len(must) > 0, nil
}

func orEmpty(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}

// tokensOfValue returns the tokens of docVal that a term match on want hit.
func tokensOfValue(docVal, want any) []string {
	wantToks := map[string]struct{}{}
	for _, t := range tokenize(fmt.Sprint(want)) {
		wantToks[t] = struct{}{}
	}
	return tokensWhere(docVal, func(t string) bool { _, ok := wantToks[t]; return ok })
}

func prefixTokens(docVal, want any) []string {
	p := strings.ToLower(fmt.Sprint(want))
	return tokensWhere(docVal, func(t string) bool { return strings.HasPrefix(t, p) })
}
