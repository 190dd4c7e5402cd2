package titles

import (
	"sort"
	"strings"
	"unicode"
)

// TitleSimilarity scores two raw titles on a 0..100 scale after running
// both through SortKey. This is the single similarity measure used for
// match scoring and drift detection.
func TitleSimilarity(a, b string) int {
	return TokenSetRatio(SortKey(a), SortKey(b))
}

// TokenSetRatio compares two strings by word-token sets. The shared tokens
// and each side's remainder are joined into sorted strings and the best
// pairwise edit ratio is returned. A title whose tokens are a subset of the
// other's scores 100, which keeps short official titles from being punished
// against long release names.
func TokenSetRatio(a, b string) int {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 100
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var shared, onlyA, onlyB []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared = append(shared, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(shared, " ")
	left := joinNonEmpty(base, strings.Join(onlyA, " "))
	right := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := editRatio(base, left)
	if r := editRatio(base, right); r > best {
		best = r
	}
	if r := editRatio(left, right); r > best {
		best = r
	}
	return best
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return set
}

// editRatio converts Levenshtein distance into a 0..100 similarity score
// against the longer string.
func editRatio(a, b string) int {
	if a == b {
		return 100
	}
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 100
	}
	dist := levenshtein(ra, rb)
	return (longest - dist) * 100 / longest
}

// levenshtein computes edit distance over runes with two rolling rows.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
