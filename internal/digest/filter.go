package digest

import "dailydigest/internal/domain"

// All is the filter value that matches everything.
const All = "all"

const uncategorized = "Uncategorized"

// Group is the articles of one category.
type Group struct {
	Category string
	Articles []domain.Article
}

func categoryOf(a domain.Article) string {
	if a.Category == "" {
		return uncategorized
	}
	return a.Category
}

func matches(filter, value string) bool {
	return filter == "" || filter == All || filter == value
}

// FilterArticles keeps the articles matching both filters, in order.
func FilterArticles(articles []domain.Article, category, source string) []domain.Article {
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if matches(category, categoryOf(a)) && matches(source, a.Source) {
			out = append(out, a)
		}
	}
	return out
}

// GroupByCategory groups articles by category. Groups appear in the order
// their category is first seen; articles keep their relative order.
func GroupByCategory(articles []domain.Article) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, a := range articles {
		cat := categoryOf(a)
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, Group{Category: cat})
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}
	return groups
}

// Categories lists distinct categories in first-seen order.
func Categories(articles []domain.Article) []string {
	return distinct(articles, categoryOf)
}

// Sources lists distinct non-empty sources in first-seen order.
func Sources(articles []domain.Article) []string {
	return distinct(articles, func(a domain.Article) string { return a.Source })
}

func distinct(articles []domain.Article, key func(domain.Article) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range articles {
		k := key(a)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Cycle returns the option after current in [All, options...], wrapping
// around.
func Cycle(current string, options []string) string {
	if current == "" || current == All {
		if len(options) == 0 {
			return All
		}
		return options[0]
	}
	for i, o := range options {
		if o == current && i+1 < len(options) {
			return options[i+1]
		}
	}
	return All
}
