package domain

import "strings"

// CategoryOthers is assigned when no known keyword matches.
const CategoryOthers = "others"

type categoryRule struct {
	category string
	terms    []string
}

// categoryRules is scanned in order; the first rule with a matching term wins.
var categoryRules = []categoryRule{
	{category: "technology", terms: []string{"technology"}},
	{category: "healthcare", terms: []string{"healthcare", "health"}},
	{category: "finance", terms: []string{"finance", "financial"}},
	{category: "retail", terms: []string{"retail"}},
	{category: "manufacturing", terms: []string{"manufacturing"}},
	{category: "education", terms: []string{"education"}},
	{category: "real estate", terms: []string{"real estate", "realty"}},
	{category: "consulting", terms: []string{"consulting"}},
	{category: "marketing", terms: []string{"marketing"}},
	{category: "automotive", terms: []string{"automotive"}},
}

// KnownCategories returns the classifier's categories in scan order.
func KnownCategories() []string {
	out := make([]string, 0, len(categoryRules))
	for _, rule := range categoryRules {
		out = append(out, rule.category)
	}
	return out
}

// Classify derives a category from free text. It never fails.
func Classify(companyName, additionalRequirements string) string {
	text := strings.ToLower(companyName + " " + additionalRequirements)
	for _, rule := range categoryRules {
		for _, term := range rule.terms {
			if strings.Contains(text, term) {
				return rule.category
			}
		}
	}
	return CategoryOthers
}

// ResolveCategory keeps an explicit category and classifies otherwise.
func ResolveCategory(category, companyName, additionalRequirements string) string {
	if c := strings.TrimSpace(category); c != "" {
		return c
	}
	return Classify(companyName, additionalRequirements)
}
