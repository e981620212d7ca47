package mention

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/larderhq/larder/pkg/larder/internalerr"
)

// Normalizer parses raw text (free text, OCR lines, LLM ingredient names)
// into structured Mentions.
type Normalizer struct {
	preparations map[string]struct{}
	noise        map[string]struct{}
}

// defaultPreparations are modifier words stripped out of the food name and
// kept as preparation/modifier context.
var defaultPreparations = []string{
	"diced", "chopped", "sliced", "minced", "grated", "shredded", "crushed",
	"boneless", "skinless", "boiled", "baked", "grilled", "roasted", "raw",
	"cooked", "frozen", "fresh", "dried", "canned", "organic", "smoked",
	"peeled", "ripe", "unsalted", "salted", "melted", "softened", "whole-grain",
	"large", "small", "medium",
}

// defaultNoise are filler words dropped entirely.
var defaultNoise = []string{
	"of", "a", "an", "the", "some", "about", "approx", "approximately", "x",
}

// NewNormalizer creates a Normalizer with the default preparation and
// noise vocabularies. Extra preparation words extend the defaults.
func NewNormalizer(extraPreparations ...string) *Normalizer {
	n := &Normalizer{
		preparations: make(map[string]struct{}, len(defaultPreparations)+len(extraPreparations)),
		noise:        make(map[string]struct{}, len(defaultNoise)),
	}
	for _, w := range defaultPreparations {
		n.preparations[w] = struct{}{}
	}
	for _, w := range extraPreparations {
		n.preparations[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range defaultNoise {
		n.noise[w] = struct{}{}
	}
	return n
}

// Normalize parses one raw string into a Mention. It extracts a leading
// quantity (default 1), a unit token (default "whole"), preparation and
// modifier words, and reduces the remainder to a canonical food-name token.
// If no food-name token can be isolated it returns *internalerr.ParseError.
func (n *Normalizer) Normalize(raw string) (Mention, error) {
	m := Mention{OriginalText: raw, Quantity: 1, Unit: "whole"}

	words := tokenize(raw)
	if len(words) == 0 {
		return Mention{}, &internalerr.ParseError{Input: raw, Reason: "no tokens"}
	}

	// Leading quantity: integer, decimal, fraction, or mixed ("1 1/2").
	if q, rest, ok := parseQuantity(words); ok {
		m.Quantity = q
		words = rest
	}

	// Unit token directly after the quantity.
	if len(words) > 0 {
		if u, ok := LookupUnit(words[0]); ok {
			m.Unit = u
			words = words[1:]
		}
	}

	var nameWords []string
	for _, w := range words {
		if _, ok := n.noise[w]; ok {
			continue
		}
		if _, ok := n.preparations[w]; ok {
			if m.Preparation == "" {
				m.Preparation = w
			} else {
				m.Modifiers = append(m.Modifiers, w)
			}
			continue
		}
		nameWords = append(nameWords, w)
	}

	if len(nameWords) == 0 {
		return Mention{}, &internalerr.ParseError{Input: raw, Reason: "no food name"}
	}

	last := len(nameWords) - 1
	nameWords[last] = singularize(nameWords[last])
	m.FoodName = strings.Join(nameWords, "_")
	return m, nil
}

// tokenize lowercases, NFKC-folds, and splits raw text into word tokens.
// Digits, '.', '/' and '-' stay inside tokens so quantities and
// hyphenated words survive.
func tokenize(raw string) []string {
	folded := norm.NFKC.String(strings.ToLower(raw))

	var tokens []string
	var current strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '.' || r == '/' || r == '-' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			tokens = append(tokens, strings.Trim(current.String(), ".-"))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, strings.Trim(current.String(), ".-"))
	}

	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseQuantity consumes leading numeric tokens and returns the quantity
// plus the remaining words.
func parseQuantity(words []string) (float64, []string, bool) {
	q, ok := parseNumber(words[0])
	if !ok {
		return 0, words, false
	}
	rest := words[1:]

	// Mixed number: "1 1/2".
	if len(rest) > 0 && strings.Contains(rest[0], "/") {
		if frac, ok := parseNumber(rest[0]); ok {
			q += frac
			rest = rest[1:]
		}
	}
	return q, rest, true
}

func parseNumber(tok string) (float64, bool) {
	if num, den, ok := strings.Cut(tok, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// irregularPlurals are plural forms the suffix rules get wrong.
var irregularPlurals = map[string]string{
	"leaves":   "leaf",
	"loaves":   "loaf",
	"halves":   "half",
	"tomatoes": "tomato",
	"potatoes": "potato",
}

// singularize reduces a plural English noun to its singular form using
// a small rule set. Words the rules don't cover pass through unchanged.
func singularize(word string) string {
	if s, ok := irregularPlurals[word]; ok {
		return s
	}
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "oes") && len(word) > 4:
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ches"), strings.HasSuffix(word, "shes"),
		strings.HasSuffix(word, "sses"), strings.HasSuffix(word, "xes"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && !strings.HasSuffix(word, "us") && len(word) > 3:
		return word[:len(word)-1]
	}
	return word
}
