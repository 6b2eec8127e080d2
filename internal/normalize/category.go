package normalize

import (
	"sort"
	"strings"

	"wealthsync/internal/models"
)

// categoryTable classifies provider security-type strings. Lookups are
// case-insensitive: an exact match is tried first, then the longest key
// contained in the input.
type categoryTable struct {
	exact    map[string]models.Category
	contains []containsRule
	fallback models.Category
}

type containsRule struct {
	key      string
	category models.Category
}

func newCategoryTable(exact, contains map[string]models.Category, fallback models.Category) categoryTable {
	rules := make([]containsRule, 0, len(contains))
	for k, c := range contains {
		rules = append(rules, containsRule{key: k, category: c})
	}
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].key) != len(rules[j].key) {
			return len(rules[i].key) > len(rules[j].key)
		}
		return rules[i].key < rules[j].key
	})
	return categoryTable{exact: exact, contains: rules, fallback: fallback}
}

// classify returns the category for the first candidate that matches exactly,
// then for the first candidate with a substring match, else the fallback.
func (t categoryTable) classify(candidates ...string) models.Category {
	normalized := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			normalized = append(normalized, c)
		}
	}
	for _, c := range normalized {
		if cat, ok := t.exact[c]; ok {
			return cat
		}
	}
	for _, c := range normalized {
		for _, rule := range t.contains {
			if strings.Contains(c, rule.key) {
				return rule.category
			}
		}
	}
	return t.fallback
}

var etradeCategories = newCategoryTable(
	map[string]models.Category{
		"eq":   models.CategoryStocks,
		"mf":   models.CategoryMutualFunds,
		"mmf":  models.CategoryCash,
		"bond": models.CategoryBonds,
		"etf":  models.CategoryETFs,
		"cash": models.CategoryCash,
		"optn": models.CategoryOther,
	},
	map[string]models.Category{
		"money market": models.CategoryCash,
		"mutual fund":  models.CategoryMutualFunds,
		"bond":         models.CategoryBonds,
		"etf":          models.CategoryETFs,
		"crypto":       models.CategoryCrypto,
	},
	models.CategoryStocks,
)

var schwabCategories = newCategoryTable(
	map[string]models.Category{
		"equity":               models.CategoryStocks,
		"mutual_fund":          models.CategoryMutualFunds,
		"money_market_fund":    models.CategoryCash,
		"mmf":                  models.CategoryCash,
		"cash_equivalent":      models.CategoryCash,
		"currency":             models.CategoryCash,
		"fixed_income":         models.CategoryBonds,
		"exchange_traded_fund": models.CategoryETFs,
		"etf":                  models.CategoryETFs,
		"option":               models.CategoryOther,
	},
	map[string]models.Category{
		"money_market":    models.CategoryCash,
		"exchange_traded": models.CategoryETFs,
		"mutual":          models.CategoryMutualFunds,
		"bond":            models.CategoryBonds,
		"crypto":          models.CategoryCrypto,
	},
	models.CategoryStocks,
)

var plaidCategories = newCategoryTable(
	map[string]models.Category{
		"cash":           models.CategoryCash,
		"cryptocurrency": models.CategoryCrypto,
		"equity":         models.CategoryStocks,
		"etf":            models.CategoryETFs,
		"fixed income":   models.CategoryBonds,
		"mutual fund":    models.CategoryMutualFunds,
		"mmf":            models.CategoryCash,
		"derivative":     models.CategoryOther,
		"loan":           models.CategoryOther,
	},
	map[string]models.Category{
		"money market": models.CategoryCash,
		"crypto":       models.CategoryCrypto,
		"bond":         models.CategoryBonds,
	},
	models.CategoryOther,
)

var demoCategories = newCategoryTable(
	map[string]models.Category{
		"equity":         models.CategoryStocks,
		"etf":            models.CategoryETFs,
		"cryptocurrency": models.CategoryCrypto,
		"mmf":            models.CategoryCash,
	},
	map[string]models.Category{
		"money market": models.CategoryCash,
		"bond":         models.CategoryBonds,
		"crypto":       models.CategoryCrypto,
		"fund":         models.CategoryMutualFunds,
	},
	models.CategoryOther,
)
