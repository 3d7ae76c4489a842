// Package aso computes App Store Optimization keyword metrics from listing text.
//
// Everything here is a pure function of its inputs. The Analyzer only carries
// the tunables (top-K and minimum word length) so independently configured
// instances can coexist.
package aso

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Defaults used when Settings leave a knob unset.
const (
	DefaultTopKeywords   = 20
	DefaultMinWordLength = 3
)

// Settings tunes an Analyzer.
type Settings struct {
	TopKeywords   int
	MinWordLength int
}

// Analyzer tokenizes listing text and builds reports.
type Analyzer struct {
	topK   int
	minLen int
}

// New builds an Analyzer, filling zero settings with defaults.
func New(s Settings) *Analyzer {
	if s.TopKeywords <= 0 {
		s.TopKeywords = DefaultTopKeywords
	}
	if s.MinWordLength <= 0 {
		s.MinWordLength = DefaultMinWordLength
	}
	return &Analyzer{topK: s.TopKeywords, minLen: s.MinWordLength}
}

// KeywordCount is one ranked keyword or phrase.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Frequencies is a ranked frequency table.
type Frequencies []KeywordCount

// Map returns the table as keyword -> count.
func (f Frequencies) Map() map[string]int {
	out := make(map[string]int, len(f))
	for _, kc := range f {
		out[kc.Keyword] = kc.Count
	}
	return out
}

// Report aggregates the ASO metrics for one listing.
type Report struct {
	TopKeywords           Frequencies        `json:"top_keywords"`
	Bigrams               Frequencies        `json:"bigrams"`
	Trigrams              Frequencies        `json:"trigrams"`
	KeywordFrequency      map[string]int     `json:"keyword_frequency"`
	KeywordDensity        map[string]float64 `json:"keyword_density"`
	CompetitiveCategories []string           `json:"competitive_categories"`
	TokenCount            int                `json:"token_count"`
	UniqueTokens          int                `json:"unique_tokens"`
}

// Tokenize lowercases text, strips punctuation and splits on whitespace,
// dropping short words and stopwords. Order and duplicates are kept.
func (a *Analyzer) Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case isWordRune(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, strings.ToLower(text))

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, w := range fields {
		if utf8.RuneCountInString(w) < a.minLen {
			continue
		}
		if IsStopword(w) {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// ExtractNgrams returns every window of n consecutive tokens joined by a space.
func ExtractNgrams(tokens []string, n int) []string {
	if n <= 0 || len(tokens) < n {
		return []string{}
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

// KeywordFrequency counts keywords and returns the topK most frequent.
// Ties keep first-occurrence order.
func KeywordFrequency(keywords []string, topK int) Frequencies {
	if topK <= 0 || len(keywords) == 0 {
		return Frequencies{}
	}
	index := make(map[string]int, len(keywords))
	table := make(Frequencies, 0, len(keywords))
	for _, kw := range keywords {
		if i, ok := index[kw]; ok {
			table[i].Count++
			continue
		}
		index[kw] = len(table)
		table = append(table, KeywordCount{Keyword: kw, Count: 1})
	}
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Count > table[j].Count
	})
	if len(table) > topK {
		table = table[:topK]
	}
	return table
}

// Report builds the ASO report for a listing. Title text precedes the
// description so equal counts rank title terms first.
func (a *Analyzer) Report(title, description string) Report {
	titleTokens := a.Tokenize(title)
	descTokens := a.Tokenize(description)
	tokens := make([]string, 0, len(titleTokens)+len(descTokens))
	tokens = append(tokens, titleTokens...)
	tokens = append(tokens, descTokens...)

	top := KeywordFrequency(tokens, a.topK)

	// Phrases never straddle the title/description boundary.
	bigrams := append(ExtractNgrams(titleTokens, 2), ExtractNgrams(descTokens, 2)...)
	trigrams := append(ExtractNgrams(titleTokens, 3), ExtractNgrams(descTokens, 3)...)

	return Report{
		TopKeywords:           top,
		Bigrams:               KeywordFrequency(bigrams, a.topK),
		Trigrams:              KeywordFrequency(trigrams, a.topK),
		KeywordFrequency:      top.Map(),
		KeywordDensity:        density(top, len(tokens)),
		CompetitiveCategories: AnalyzeCompetitiveKeywords(title + " " + description),
		TokenCount:            len(tokens),
		UniqueTokens:          uniqueCount(tokens),
	}
}

// density is each keyword's share of all tokens, as a percentage rounded to
// two decimals.
func density(top Frequencies, total int) map[string]float64 {
	out := make(map[string]float64, len(top))
	if total == 0 {
		return out
	}
	for _, kc := range top {
		pct := float64(kc.Count) / float64(total) * 100
		out[kc.Keyword] = math.Round(pct*100) / 100
	}
	return out
}

func uniqueCount(tokens []string) int {
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	return len(seen)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
