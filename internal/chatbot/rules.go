package chatbot

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
)

// minPrefixKeywordLen is the shortest single-word keyword allowed to match as a
// token prefix. Shorter keywords ("ai", "hi", "app") must equal a token.
const minPrefixKeywordLen = 4

// Brand holds the values substituted into rule templates.
type Brand struct {
	Name  string
	Email string
	Phone string
}

// DefaultBrand returns the brand used when configuration does not override it.
func DefaultBrand() Brand {
	return Brand{
		Name:  "Tech Safi",
		Email: "hello@techsafi.co.ke",
		Phone: "+254 700 000 000",
	}
}

// Rule pairs a keyword set with a response template.
type Rule struct {
	Name     string
	Keywords []string
	Template string
}

type compiledRule struct {
	name     string
	keywords [][]string
	response string
}

// RuleTable is an ordered keyword table. The first matching rule wins.
type RuleTable struct {
	rules    []compiledRule
	fallback string
}

// NewRuleTable renders every template with brand and tokenises the keyword sets.
func NewRuleTable(rules []Rule, defaultTemplate string, brand Brand) (*RuleTable, error) {
	table := &RuleTable{rules: make([]compiledRule, 0, len(rules))}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rule without a name")
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rule %q", r.Name)
		}
		seen[r.Name] = true
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %q has no keywords", r.Name)
		}
		response, err := render(r.Name, r.Template, brand)
		if err != nil {
			return nil, err
		}
		cr := compiledRule{name: r.Name, response: response}
		for _, kw := range r.Keywords {
			tokens := tokenize(kw)
			if len(tokens) == 0 {
				return nil, fmt.Errorf("rule %q has an empty keyword", r.Name)
			}
			cr.keywords = append(cr.keywords, tokens)
		}
		table.rules = append(table.rules, cr)
	}
	fallback, err := render("default", defaultTemplate, brand)
	if err != nil {
		return nil, err
	}
	table.fallback = fallback
	return table, nil
}

// NewDefaultRuleTable builds the built-in consultancy rule table.
func NewDefaultRuleTable(brand Brand) (*RuleTable, error) {
	return NewRuleTable(DefaultRules(), DefaultTemplate, brand)
}

// Names returns rule names in evaluation order.
func (t *RuleTable) Names() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.name
	}
	return names
}

// Match returns the first rule whose keyword set intersects the utterance.
func (t *RuleTable) Match(utterance string) (name, response string, ok bool) {
	tokens := tokenize(utterance)
	if len(tokens) == 0 {
		return "", "", false
	}
	for _, r := range t.rules {
		for _, kw := range r.keywords {
			if containsKeyword(tokens, kw) {
				return r.name, r.response, true
			}
		}
	}
	return "", "", false
}

// Resolve answers from the table, using the guidance message when nothing matches.
func (t *RuleTable) Resolve(utterance string) Reply {
	if name, response, ok := t.Match(utterance); ok {
		return Reply{Text: response, Source: models.ReplySourceRule, Rule: name}
	}
	return Reply{Text: t.fallback, Source: models.ReplySourceDefault}
}

func render(name, text string, brand Brand) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, brand); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "", fmt.Errorf("template %q rendered empty", name)
	}
	return out, nil
}

// tokenize lower-cases s and splits it on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsKeyword(tokens, keyword []string) bool {
	if len(keyword) == 1 {
		for _, tok := range tokens {
			if tokenMatches(tok, keyword[0]) {
				return true
			}
		}
		return false
	}
	for i := 0; i+len(keyword) <= len(tokens); i++ {
		match := true
		for j, kw := range keyword {
			if tokens[i+j] != kw {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func tokenMatches(token, keyword string) bool {
	if len([]rune(keyword)) < minPrefixKeywordLen {
		return token == keyword
	}
	return strings.HasPrefix(token, keyword)
}
