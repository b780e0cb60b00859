package taxonomy

import (
	"strings"
	"unicode"
)

// Label renders a human label from a hierarchical tag identifier. It is a
// pure formatting function, independent of extraction: the trailing path
// segment is taken, camel-case is expanded, known suffixes are split
// ("glutenfree" becomes "Gluten Free", "plantbased" becomes "Plant Based"),
// and each word is capitalized with non-ASCII letters preserved.
func Label(tag string) string {
	leaf := tag
	if i := strings.LastIndexByte(tag, '.'); i >= 0 {
		leaf = tag[i+1:]
	}
	if leaf == "" {
		return ""
	}

	words := splitCamel(leaf)

	// Known suffix patterns on the final word.
	var expanded []string
	for _, w := range words {
		expanded = append(expanded, splitSuffix(w)...)
	}

	for i, w := range expanded {
		expanded[i] = capitalize(w)
	}
	return strings.Join(expanded, " ")
}

var labelSuffixes = []string{"free", "based"}

// splitSuffix breaks a known trailing suffix off a word: "dairyfree" yields
// ["dairy", "free"]. Words equal to the suffix itself stay whole.
func splitSuffix(w string) []string {
	lower := strings.ToLower(w)
	for _, suf := range labelSuffixes {
		if len(lower) > len(suf) && strings.HasSuffix(lower, suf) {
			return []string{w[:len(w)-len(suf)], w[len(w)-len(suf):]}
		}
	}
	return []string{w}
}

// splitCamel splits "dutchOven" into ["dutch", "Oven"], treating hyphens and
// underscores as separators too.
func splitCamel(s string) []string {
	var words []string
	var cur strings.Builder
	for _, r := range s {
		switch {
		case r == '-' || r == '_':
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
		case unicode.IsUpper(r) && cur.Len() > 0:
			words = append(words, cur.String())
			cur.Reset()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words
}

// capitalize upper-cases the first letter of w, leaving the rest untouched
// so non-ASCII letters survive ("crème" becomes "Crème").
func capitalize(w string) string {
	for i, r := range w {
		return string(unicode.ToUpper(r)) + w[i+len(string(r)):]
	}
	return w
}
