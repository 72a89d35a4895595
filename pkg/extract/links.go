// Package extract pulls links, text and Markdown out of parsed HTML documents.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// DefaultLinkSelector is used when Links is given an empty selector.
const DefaultLinkSelector = "a"

// Link is an anchor found in a document together with the text of its container.
type Link struct {
	Text string
	URL  *descriptor.URL
}

// LinkFilter narrows Links. Each non-empty list must have at least one match.
type LinkFilter struct {
	StartsWith []string // Prefixes of the URL basename
	EndsWith   []string // Suffixes of the URL basename
	Containing []string // Substrings of the decoded URL
	Exclude    []string // Regex patterns; a matching decoded URL is dropped
}

func (f LinkFilter) accept(u *descriptor.URL, exclude []*regexp.Regexp) bool {
	if len(f.StartsWith) > 0 && !anyOf(f.StartsWith, func(s string) bool { return strings.HasPrefix(u.Basename, s) }) {
		return false
	}
	if len(f.EndsWith) > 0 && !anyOf(f.EndsWith, func(s string) bool { return strings.HasSuffix(u.Basename, s) }) {
		return false
	}
	decoded := u.Decode()
	if len(f.Containing) > 0 && !anyOf(f.Containing, func(s string) bool { return strings.Contains(decoded, s) }) {
		return false
	}
	return !utils.MatchAnyRegex(exclude, decoded)
}

func anyOf(values []string, fn func(string) bool) bool {
	for _, v := range values {
		if fn(v) {
			return true
		}
	}
	return false
}

// Links returns the http(s) links inside every element matching selector, resolved
// against base and filtered. The element itself counts when it is an anchor.
// Order follows the document; duplicates are kept.
func Links(doc *goquery.Document, base *url.URL, selector string, filter LinkFilter) ([]Link, error) {
	if selector == "" {
		selector = DefaultLinkSelector
	}
	exclude, err := utils.CompileRegexPatterns(filter.Exclude, false)
	if err != nil {
		return nil, err
	}

	var links []Link
	doc.Find(selector).Each(func(_ int, container *goquery.Selection) {
		text := strings.TrimSpace(container.Text())
		anchors := container.Filter("a[href]").AddSelection(container.Find("a[href]"))
		anchors.Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			href = strings.TrimSpace(href)
			if href == "" {
				return
			}
			abs, parseErr := url.Parse(href)
			if parseErr != nil {
				return
			}
			if base != nil {
				abs = base.ResolveReference(abs)
			}
			if scheme := strings.ToLower(abs.Scheme); scheme != "http" && scheme != "https" {
				return
			}
			u := descriptor.ParseURL(abs.String())
			if !filter.accept(u, exclude) {
				return
			}
			links = append(links, Link{Text: text, URL: u})
		})
	})
	return links, nil
}
