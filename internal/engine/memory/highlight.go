package memory

import (
	"fmt"
	"strings"
)

const (
	defaultPreTag  = "<em>"
	defaultPostTag = "</em>"
)

type highlighter struct {
	fields []string
	pre    string
	post   string
}

func parseHighlight(spec any) (highlighter, error) {
	h := highlighter{pre: defaultPreTag, post: defaultPostTag}
	if spec == nil {
		return h, nil
	}
	m, ok := spec.(map[string]any)
	if !ok {
		return h, fmt.Errorf("%w: highlight %v", ErrUnsupported, spec)
	}
	if fields, ok := m["fields"].(map[string]any); ok {
		for f := range fields {
			h.fields = append(h.fields, f)
		}
	}
	if tags, ok := m["pre_tags"].([]any); ok && len(tags) > 0 {
		h.pre = fmt.Sprint(tags[0])
	}
	if tags, ok := m["post_tags"].([]any); ok && len(tags) > 0 {
		h.post = fmt.Sprint(tags[0])
	}
	return h, nil
}

// apply returns fragments for every configured field the query matched.
func (h highlighter) apply(src map[string]any, matched map[string]map[string]struct{}) map[string][]string {
	var out map[string][]string
	for _, field := range h.fields {
		tokens, ok := matched[field]
		if !ok {
			continue
		}
		var frags []string
		for _, s := range stringsOf(src[field]) {
			if frag, hit := h.wrap(s, tokens); hit {
				frags = append(frags, frag)
			}
		}
		if len(frags) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]string)
		}
		out[field] = frags
	}
	return out
}

func (h highlighter) wrap(s string, tokens map[string]struct{}) (string, bool) {
	var b strings.Builder
	last, hit := 0, false
	for _, loc := range wordRe.FindAllStringIndex(s, -1) {
		word := s[loc[0]:loc[1]]
		if _, ok := tokens[strings.ToLower(word)]; !ok {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(h.pre)
		b.WriteString(word)
		b.WriteString(h.post)
		last, hit = loc[1], true
	}
	b.WriteString(s[last:])
	return b.String(), hit
}
