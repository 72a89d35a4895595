package grammar

import (
	"fmt"
	"regexp"
	"sync"
)

var (
	suffixCacheMu sync.Mutex
	suffixCache   = map[string]*regexp.Regexp{}
)

// textMatcher returns the unanchored URL pattern, optionally followed by endsWith.
func textMatcher(endsWith string) (*regexp.Regexp, error) {
	if endsWith == "" {
		return textPattern, nil
	}
	suffixCacheMu.Lock()
	defer suffixCacheMu.Unlock()
	if re, ok := suffixCache[endsWith]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`(?i)` + urlBody + `(?:` + endsWith + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid URL suffix pattern %q: %w", endsWith, err)
	}
	suffixCache[endsWith] = re
	return re, nil
}

// FindURLs returns every URL found in text, in order of appearance.
// A non-empty endsWith is a regular expression the URL must be immediately followed by,
// and it is part of the returned match.
func FindURLs(text, endsWith string) ([]string, error) {
	re, err := textMatcher(endsWith)
	if err != nil {
		return nil, err
	}
	return re.FindAllString(text, -1), nil
}

// ReplaceURLs substitutes repl for every URL in text.
func ReplaceURLs(text, repl, endsWith string) (string, error) {
	re, err := textMatcher(endsWith)
	if err != nil {
		return text, err
	}
	return re.ReplaceAllLiteralString(text, repl), nil
}

// RemoveURLs deletes every URL in text.
func RemoveURLs(text, endsWith string) (string, error) {
	return ReplaceURLs(text, "", endsWith)
}
