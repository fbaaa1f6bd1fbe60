package service

import (
	"strings"

	"golang-sentiment-panel/internal/entity"
	"golang-sentiment-panel/internal/pipeline/config"
)

// Classification is a tagged classification result. Ticker is set only for
// firm classifications.
type Classification struct {
	Category string
	Ticker   string
}

// KeywordRuleTable is the static classification rule table: ticker to alias
// set, plus one macro keyword set. Classify is a pure function over it, so
// the rules are swappable and trivially testable.
type KeywordRuleTable struct {
	firm  []firmRule
	macro []string
}

type firmRule struct {
	code    string
	aliases []string
}

// NewKeywordRuleTable builds the rule table from config. Matching is
// case-insensitive; the ticker code itself always counts as an alias.
func NewKeywordRuleTable(tickers []config.Ticker, macroKeywords []string) *KeywordRuleTable {
	table := &KeywordRuleTable{}
	for _, t := range tickers {
		code := strings.ToUpper(strings.TrimSpace(t.Code))
		if code == "" {
			continue
		}
		aliases := []string{strings.ToLower(code)}
		for _, alias := range t.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias != "" {
				aliases = append(aliases, alias)
			}
		}
		table.firm = append(table.firm, firmRule{code: code, aliases: aliases})
	}
	for _, kw := range macroKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			table.macro = append(table.macro, kw)
		}
	}
	return table
}

// Classify attributes an article to zero or more tickers, or to the macro
// series. An article matching several tickers fans out to each of them at
// full weight. An article matching neither firm nor macro rules returns nil
// and is dropped from aggregation; that is not an error.
func (t *KeywordRuleTable) Classify(headline, body, articleURL string, tags []string) []Classification {
	text := strings.ToLower(headline + " " + body + " " + articleURL)

	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[strings.ToUpper(strings.TrimSpace(tag))] = true
	}

	var result []Classification
	for _, rule := range t.firm {
		if tagSet[rule.code] || containsAny(text, rule.aliases) {
			result = append(result, Classification{Category: entity.CategoryFirm, Ticker: rule.code})
		}
	}
	if len(result) > 0 {
		return result
	}

	if containsAny(text, t.macro) {
		return []Classification{{Category: entity.CategoryMacro}}
	}
	return nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
