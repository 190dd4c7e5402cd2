// Package titles centralizes Unicode title handling shared by the matcher,
// the catalog repositories and the association checker: cleaning, sort keys,
// search variants and token-based similarity.
package titles

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ligatures maps single-rune ligatures to their multi-letter expansions.
// NFD decomposition does not split these, so they need an explicit table.
var ligatures = map[rune]string{
	'œ': "oe",
	'Œ': "Oe",
	'æ': "ae",
	'Æ': "Ae",
	'ﬁ': "fi",
	'ﬂ': "fl",
}

// ligatureCollapser rewrites expanded digraphs back into ligature runes so
// a plain-ASCII query can match stored titles that kept the ligature form.
var ligatureCollapser = strings.NewReplacer(
	"oe", "œ",
	"Oe", "Œ",
	"OE", "Œ",
	"ae", "æ",
	"Ae", "Æ",
	"AE", "Æ",
)

// leadingArticles are stripped from the front of titles when building sort
// keys, lowercase, longest first so "les" wins over "le". English and
// French only: a wider list turns "Die Hard" into "Hard".
var leadingArticles = []string{
	"les", "des", "the", "une",
	"le", "la", "un", "an",
	"a",
}

// elidedArticles attach directly to the next word ("L'Atalante").
// Both the ASCII apostrophe and U+2019 are accepted.
var elidedArticles = []string{
	"l'", "l’", "d'", "d’",
}

var titleCaser = cases.Title(language.Und)

// Clean strips zero-width and other invisible format characters and
// normalizes runs of whitespace to single spaces. Repository write paths
// run every title through it before persisting.
func Clean(s string) string {
	return strings.Join(strings.Fields(stripInvisible(s)), " ")
}

// stripInvisible drops format-category runes: zero-width spaces and
// joiners, soft hyphens, directional marks, BOMs.
func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// ExpandLigatures rewrites ligature runes to their letter pairs.
func ExpandLigatures(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { _, ok := ligatures[r]; return ok }) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if exp, ok := ligatures[r]; ok {
			b.WriteString(exp)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FoldAccents removes diacritics by decomposing to NFD and dropping
// combining marks. Ligatures are untouched; use ExpandLigatures for those.
func FoldAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SortKey builds the canonical ordering and comparison key for a title:
// invisibles stripped, ligatures expanded, accents folded, lowercased,
// leading non-alphanumerics and articles removed, whitespace collapsed.
// The same key feeds match scoring, shelf ordering and drift detection.
func SortKey(title string) string {
	s := stripInvisible(title)
	s = ExpandLigatures(s)
	s = FoldAccents(s)
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")

	for {
		trimmed := strings.TrimLeftFunc(s, notAlphanumeric)
		trimmed = stripLeadingArticle(trimmed)
		if trimmed == s {
			break
		}
		if strings.TrimSpace(trimmed) == "" {
			// Titles that are nothing but articles ("The The") keep
			// their last non-empty form.
			break
		}
		s = trimmed
	}
	return strings.TrimSpace(s)
}

func notAlphanumeric(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func stripLeadingArticle(s string) string {
	for _, art := range leadingArticles {
		if strings.HasPrefix(s, art+" ") {
			return strings.TrimSpace(s[len(art)+1:])
		}
	}
	for _, art := range elidedArticles {
		if strings.HasPrefix(s, art) {
			return strings.TrimSpace(s[len(art):])
		}
	}
	return s
}

// SearchVariants expands an operator query into the forms a LIKE-based
// repository must OR together: the original, ligature-expanded,
// ligature-collapsed, accent-folded and case variants. SQLite's LIKE is
// case-insensitive over ASCII only, so non-ASCII case forms are emitted
// explicitly. The original query is always first and duplicates are removed.
func SearchVariants(query string) []string {
	query = Clean(query)
	if query == "" {
		return nil
	}

	seen := make(map[string]struct{}, 8)
	variants := make([]string, 0, 8)
	add := func(v string) {
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}

	add(query)
	add(ExpandLigatures(query))
	add(ligatureCollapser.Replace(query))
	folded := FoldAccents(ExpandLigatures(query))
	add(folded)
	add(strings.ToLower(query))
	add(strings.ToLower(folded))
	add(titleCaser.String(strings.ToLower(query)))
	add(titleCaser.String(strings.ToLower(folded)))
	return variants
}
