// Package vehiclenlp extracts vehicle make, model and year from free text
// in Russian or English, e.g. "стучит подвеска на Ладе Весте 2019".
package vehiclenlp

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// VehicleMatch is an extracted vehicle mention.
type VehicleMatch struct {
	Make       string  // e.g. "Lada"
	Model      string  // e.g. "Vesta"
	Year       int     // 0 if not found
	Confidence float64 // 0.0-1.0
	Span       string  // the matched text fragment
}

// String renders "Make Model Year", omitting missing parts.
func (m VehicleMatch) String() string {
	parts := []string{m.Make}
	if m.Model != "" {
		parts = append(parts, m.Model)
	}
	if m.Year > 0 {
		parts = append(parts, strconv.Itoa(m.Year))
	}
	return strings.Join(parts, " ")
}

const (
	minYear = 1950
	maxYear = 2030
	// yearWindow is how many tokens around a mention are searched for a year.
	yearWindow = 3
)

type token struct {
	text       string // lowercase
	start, end int    // byte offsets into the source text
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'' || r == '’'
}

func tokenize(text string) []token {
	var toks []token
	start := -1
	for i, r := range text {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			toks = append(toks, newToken(text, start, i))
			start = -1
		}
	}
	if start >= 0 {
		toks = append(toks, newToken(text, start, len(text)))
	}
	return toks
}

func newToken(text string, start, end int) token {
	t := strings.Trim(text[start:end], "-")
	t = strings.ReplaceAll(strings.ToLower(t), "’", "'")
	t = strings.ReplaceAll(t, "ё", "е")
	return token{text: t, start: start, end: end}
}

// inflection holds the letters Russian case endings are made of.
const inflection = "аяоеыиуюйьмхв"

func isCyrillic(r rune) bool { return unicode.Is(unicode.Cyrillic, r) }

// matchWord reports whether tok is word, allowing a short Russian case
// ending ("тойоты", "ладе", "солярисе") when word has at least minStem runes.
func matchWord(tok, word string, minStem int) bool {
	if tok == word {
		return true
	}
	w := []rune(word)
	if len(w) < minStem || !isCyrillic(w[0]) {
		return false
	}
	base := w
	if strings.ContainsRune(inflection, w[len(w)-1]) {
		base = w[:len(w)-1]
	}
	t := []rune(tok)
	if len(t) <= len(base) || len(t)-len(base) > 3 || string(t[:len(base)]) != string(base) {
		return false
	}
	for _, r := range t[len(base):] {
		if !strings.ContainsRune(inflection, r) {
			return false
		}
	}
	return true
}

// matchPhrase matches a space-separated phrase starting at toks[i] and
// returns the index after it, or -1.
func matchPhrase(toks []token, i int, phrase string, minStem int) int {
	words := strings.Fields(phrase)
	if i+len(words) > len(toks) {
		return -1
	}
	for j, w := range words {
		if !matchWord(toks[i+j].text, w, minStem) {
			return -1
		}
	}
	return i + len(words)
}

type spelling struct {
	text      string
	canonical string
	make_     string
}

var (
	makeSpellings   []spelling            // longest phrase first
	modelsByMake    map[string][]spelling // longest phrase first
	standaloneModel []spelling            // spellings unique to one make
)

func byLength(s []spelling) {
	sort.SliceStable(s, func(i, j int) bool {
		wi, wj := len(strings.Fields(s[i].text)), len(strings.Fields(s[j].text))
		if wi != wj {
			return wi > wj
		}
		if len(s[i].text) != len(s[j].text) {
			return len(s[i].text) > len(s[j].text)
		}
		return s[i].text < s[j].text
	})
}

func init() {
	for alias, mk := range makeAliases {
		makeSpellings = append(makeSpellings, spelling{text: alias, canonical: mk, make_: mk})
	}
	byLength(makeSpellings)

	modelsByMake = make(map[string][]spelling)
	owners := make(map[string]map[string]bool)
	for mk, models := range makeModels {
		for _, names := range models {
			canonical := names[0]
			texts := append([]string{strings.ToLower(canonical)}, names[1:]...)
			for _, t := range texts {
				modelsByMake[mk] = append(modelsByMake[mk], spelling{text: t, canonical: canonical, make_: mk})
				if owners[t] == nil {
					owners[t] = make(map[string]bool)
				}
				owners[t][mk] = true
			}
		}
		byLength(modelsByMake[mk])
	}
	for _, list := range modelsByMake {
		for _, s := range list {
			if len(owners[s.text]) != 1 || len([]rune(s.text)) < 3 || isNumber(s.text) {
				continue
			}
			standaloneModel = append(standaloneModel, s)
		}
	}
	byLength(standaloneModel)
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// parseYear accepts "2019", "2019г" and "'19".
func parseYear(tok string) int {
	tok = strings.TrimSuffix(tok, "г")
	if strings.HasPrefix(tok, "'") && len(tok) == 3 {
		yy, err := strconv.Atoi(tok[1:])
		if err != nil {
			return 0
		}
		if yy <= maxYear%100 {
			return 2000 + yy
		}
		if yy >= minYear%100 {
			return 1900 + yy
		}
		return 0
	}
	if len(tok) != 4 {
		return 0
	}
	y, err := strconv.Atoi(tok)
	if err != nil || y < minYear || y > maxYear {
		return 0
	}
	return y
}

// findYear scans toks[from:to] and returns the first year and its index.
func findYear(toks []token, from, to int) (int, int) {
	from = max(from, 0)
	to = min(to, len(toks))
	for i := from; i < to; i++ {
		if y := parseYear(toks[i].text); y > 0 {
			return y, i
		}
	}
	return 0, -1
}

// findModel looks for a model of mk starting at toks[i].
func findModel(mk string, toks []token, i int) (string, int) {
	for _, s := range modelsByMake[mk] {
		if end := matchPhrase(toks, i, s.text, 4); end > 0 {
			return s.canonical, end
		}
	}
	return "", i
}

func confidence(model string, year int, base float64) float64 {
	switch {
	case year > 0 && model != "":
		return base + 0.35
	case model != "":
		return base + 0.20
	case year > 0:
		return base + 0.10
	default:
		return base
	}
}

// Extract finds all vehicle mentions in text, highest confidence first.
func Extract(text string) []VehicleMatch {
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil
	}
	var matches []VehicleMatch
	used := make(map[string]bool)
	covered := make(map[int]bool) // token indexes already part of a make mention

	add := func(m VehicleMatch, first, last int) {
		key := m.String()
		if used[key] {
			return
		}
		used[key] = true
		m.Span = strings.TrimSpace(text[toks[first].start:toks[last].end])
		matches = append(matches, m)
	}

	for i := 0; i < len(toks); i++ {
		var mk string
		next := -1
		for _, s := range makeSpellings {
			if end := matchPhrase(toks, i, s.text, 4); end > 0 {
				mk, next = s.canonical, end
				break
			}
		}
		if mk == "" {
			continue
		}
		model, end := findModel(mk, toks, next)
		first, last := i, end-1
		year, at := findYear(toks, i-yearWindow, i)
		if year == 0 {
			year, at = findYear(toks, end, end+yearWindow)
		}
		if year > 0 {
			first, last = min(first, at), max(last, at)
		}
		for j := i; j < end; j++ {
			covered[j] = true
		}
		add(VehicleMatch{Make: mk, Model: model, Year: year, Confidence: confidence(model, year, 0.60)}, first, last)
		i = end - 1
	}

	for i := range toks {
		if covered[i] {
			continue
		}
		for _, s := range standaloneModel {
			end := matchPhrase(toks, i, s.text, 5)
			if end < 0 {
				continue
			}
			year, at := findYear(toks, i-yearWindow, end+yearWindow)
			first, last := i, end-1
			if year > 0 {
				first, last = min(first, at), max(last, at)
			}
			conf := 0.50
			if year > 0 {
				conf = 0.75
			}
			add(VehicleMatch{Make: s.make_, Model: s.canonical, Year: year, Confidence: conf}, first, last)
			break
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Confidence > matches[j].Confidence })
	return matches
}

// ExtractBest returns the single highest-confidence match, or nil.
func ExtractBest(text string) *VehicleMatch {
	matches := Extract(text)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}
