package memory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// tokenize lowercases s and splits it into words.
func tokenize(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

// stringsOf returns the string forms of a field value; arrays are flattened.
func stringsOf(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, stringsOf(item)...)
		}
		return out
	default:
		return []string{fmt.Sprint(x)}
	}
}

// tokensWhere returns the distinct tokens of v accepted by pred.
func tokensWhere(v any, pred func(string) bool) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, s := range stringsOf(v) {
		for _, tok := range tokenize(s) {
			if _, dup := seen[tok]; dup || !pred(tok) {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// equal compares a stored value to a wanted one. Arrays match when any
// element does; numeric strings compare as numbers.
func equal(docVal, want any) bool {
	if arr, ok := docVal.([]any); ok {
		for _, item := range arr {
			if equal(item, want) {
				return true
			}
		}
		return false
	}
	if docVal == nil || want == nil {
		return docVal == want
	}
	if df, ok := toFloat(docVal); ok {
		if wf, ok := toFloat(want); ok {
			return df == wf
		}
	}
	return fmt.Sprint(docVal) == fmt.Sprint(want)
}

// compare orders two values: numbers numerically, everything else as strings.
func compare(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func inRange(docVal any, op string, bound any) bool {
	if arr, ok := docVal.([]any); ok {
		for _, item := range arr {
			if inRange(item, op, bound) {
				return true
			}
		}
		return false
	}
	if docVal == nil {
		return false
	}
	c := compare(docVal, bound)
	switch op {
	case "gt":
		return c > 0
	case "gte":
		return c >= 0
	case "lt":
		return c < 0
	case "lte":
		return c <= 0
	default:
		return false
	}
}

// levenshtein computes the edit distance between a and b over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// autoFuzziness mirrors the engine's AUTO setting: exact below three runes,
// one edit up to five, two beyond.
func autoFuzziness(term string) int {
	switch n := len([]rune(term)); {
	case n < 3:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}
