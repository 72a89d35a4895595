package utils

import (
	"regexp"
)

// Replacer is a closed set of replacement shapes: Pairs and AnyOf.
type Replacer interface {
	rules() []Pair
}

// Pair replaces Old with New.
type Pair struct {
	Old string
	New string
}

// Pairs is an ordered old→new mapping; each pair sees the output of the previous one.
type Pairs []Pair

func (p Pairs) rules() []Pair { return p }

// AnyOf replaces every entry of Old with the same New.
type AnyOf struct {
	Old []string
	New string
}

func (a AnyOf) rules() []Pair {
	out := make([]Pair, 0, len(a.Old))
	for _, old := range a.Old {
		out = append(out, Pair{Old: old, New: a.New})
	}
	return out
}

// ReplaceOptions tunes how the Old side of a rule is interpreted.
type ReplaceOptions struct {
	IgnoreCase bool
	Literal    bool // Old is plain text rather than a regular expression
}

type compiledRule struct {
	re  *regexp.Regexp
	new string
}

func compileRules(r Replacer, opts ReplaceOptions) ([]compiledRule, error) {
	if r == nil {
		return nil, nil
	}
	rules := r.rules()
	patterns := make([]string, 0, len(rules))
	kept := make([]Pair, 0, len(rules))
	for _, rule := range rules {
		if rule.Old == "" {
			continue
		}
		pattern := rule.Old
		if opts.Literal {
			pattern = regexp.QuoteMeta(pattern)
		}
		patterns = append(patterns, pattern)
		kept = append(kept, rule)
	}
	compiled, err := CompileRegexPatterns(patterns, opts.IgnoreCase)
	if err != nil {
		return nil, err
	}
	out := make([]compiledRule, len(compiled))
	for i, re := range compiled {
		out[i] = compiledRule{re: re, new: kept[i].New}
	}
	return out, nil
}

func applyRules(s string, rules []compiledRule) string {
	for _, rule := range rules {
		s = rule.re.ReplaceAllLiteralString(s, rule.new)
	}
	return s
}

// ReplaceString applies r to s.
func ReplaceString(s string, r Replacer, opts ReplaceOptions) (string, error) {
	rules, err := compileRules(r, opts)
	if err != nil {
		return s, err
	}
	return applyRules(s, rules), nil
}

// ReplaceStrings applies r to every value and returns a new slice.
func ReplaceStrings(values []string, r Replacer, opts ReplaceOptions) ([]string, error) {
	rules, err := compileRules(r, opts)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = applyRules(v, rules)
	}
	return out, nil
}

// OmitString removes every match of the omit patterns from s.
func OmitString(s string, omits []string, ignoreCase bool) (string, error) {
	return ReplaceString(s, AnyOf{Old: omits}, ReplaceOptions{IgnoreCase: ignoreCase})
}

// OmitStrings removes the omit patterns from each value. With drop, values left empty are removed.
func OmitStrings(values []string, omits []string, ignoreCase, drop bool) ([]string, error) {
	out, err := ReplaceStrings(values, AnyOf{Old: omits}, ReplaceOptions{IgnoreCase: ignoreCase})
	if err != nil || !drop {
		return out, err
	}
	kept := out[:0]
	for _, v := range out {
		if v != "" {
			kept = append(kept, v)
		}
	}
	return kept, nil
}

// IsAlpha reports whether word is non-empty and made only of ASCII letters.
func IsAlpha(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		c := word[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// IsAlnum reports whether word is non-empty and made only of ASCII letters and digits.
func IsAlnum(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		c := word[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
