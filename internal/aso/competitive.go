package aso

import (
	"sort"
	"strings"
)

// Category is a competitive-positioning label and the words that trigger it.
type Category struct {
	Label    string
	Triggers []string
}

// Categories is the fixed competitive taxonomy.
var Categories = []Category{
	{Label: "monetization", Triggers: []string{"buy", "premium", "subscribe", "purchase", "price", "upgrade"}},
	{Label: "social", Triggers: []string{"share", "friend", "invite", "connect", "community"}},
	{Label: "engagement", Triggers: []string{"daily", "reward", "streak", "achievement", "level"}},
}

// AnalyzeCompetitiveKeywords returns the sorted labels whose trigger words
// appear as whole words in text.
func AnalyzeCompetitiveKeywords(text string) []string {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !isWordRune(r) }) {
		words[w] = struct{}{}
	}

	labels := make([]string, 0, len(Categories))
	for _, cat := range Categories {
		for _, trigger := range cat.Triggers {
			if _, ok := words[trigger]; ok {
				labels = append(labels, cat.Label)
				break
			}
		}
	}
	sort.Strings(labels)
	return labels
}
