package calculator

import "strings"

// CategoryRule maps expense-name keywords to a category.
type CategoryRule struct {
	Category string
	Keywords []string
}

// Classifier assigns expenses to categories by keyword match. Rules are
// tried in order and the first match wins; unmatched names fall into the
// fallback bucket.
type Classifier struct {
	rules    []CategoryRule
	fallback string
}

// NewClassifier creates a classifier. Keywords are matched case-insensitively.
func NewClassifier(fallback string, rules ...CategoryRule) *Classifier {
	normalized := make([]CategoryRule, len(rules))
	for i, r := range rules {
		words := make([]string, len(r.Keywords))
		for j, w := range r.Keywords {
			words[j] = strings.ToLower(w)
		}
		normalized[i] = CategoryRule{Category: r.Category, Keywords: words}
	}
	return &Classifier{rules: normalized, fallback: fallback}
}

// DefaultClassifier is tuned for travel expenses.
var DefaultClassifier = NewClassifier("General",
	CategoryRule{Category: "Food", Keywords: []string{"sushi", "ramen", "dinner", "lunch", "breakfast", "cafe", "coffee", "7-11", "lawson", "family mart", "tea", "food", "snack", "beer", "water"}},
	CategoryRule{Category: "Transport", Keywords: []string{"train", "bus", "taxi", "uber", "grab", "flight", "shinkansen", "subway", "metro", "suica"}},
	CategoryRule{Category: "Accommodation", Keywords: []string{"hotel", "airbnb", "booking", "agoda", "hostel", "room"}},
	CategoryRule{Category: "Shopping", Keywords: []string{"gift", "souvenir", "shop", "mall", "donki", "uniqlo"}},
	CategoryRule{Category: "Entertainment", Keywords: []string{"ticket", "entry", "museum", "park", "disney", "universal", "show"}},
)

// Classify returns the category for an expense name.
func (c *Classifier) Classify(name string) string {
	lower := strings.ToLower(name)
	for _, r := range c.rules {
		for _, w := range r.Keywords {
			if strings.Contains(lower, w) {
				return r.Category
			}
		}
	}
	return c.fallback
}

// CategoryValue is a named THB value to be bucketed.
type CategoryValue struct {
	Name  string
	Value float64
}

// CategoryTotal is the summed value of one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// Breakdown sums values per category. Categories come back in rule order
// with the fallback last; empty categories are omitted.
func (c *Classifier) Breakdown(values []CategoryValue) []CategoryTotal {
	sums := make(map[string][]float64)
	for _, v := range values {
		cat := c.Classify(v.Name)
		sums[cat] = append(sums[cat], v.Value)
	}

	order := make([]string, 0, len(c.rules)+1)
	for _, r := range c.rules {
		order = append(order, r.Category)
	}
	order = append(order, c.fallback)

	var totals []CategoryTotal
	for _, cat := range order {
		vals, ok := sums[cat]
		if !ok {
			continue
		}
		total := Sum(vals...)
		if total == 0 {
			continue
		}
		totals = append(totals, CategoryTotal{Category: cat, Total: total})
		delete(sums, cat)
	}
	return totals
}
