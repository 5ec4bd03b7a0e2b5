package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are dropped from the comparison form. The list is the
// domain noise words ("project", "program") plus common English
// function words.
var stopWords = map[string]bool{
	"project": true, "projects": true, "program": true, "programs": true, "initiative": true,
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "has": true, "have": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "their": true, "this": true, "to": true,
	"was": true, "were": true, "will": true, "with": true,
}

// Text returns the comparison form of s: accents stripped, lower-cased,
// punctuation replaced by spaces, stop words removed, whitespace collapsed.
func Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return strings.Join(Tokens(s), " ")
}

// Tokens splits s into its normalized, stop-word-filtered terms.
func Tokens(s string) []string {
	folded := fold(s)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// fold strips combining marks and lower-cases. Transformers are stateful,
// so a fresh chain is built per call.
func fold(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
		cases.Lower(language.Und),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Title title-cases a display value such as a geocoded place name.
func Title(s string) string {
	return cases.Title(language.AmericanEnglish).String(strings.ToLower(s))
}
