package extract

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// DefaultTextSelectors walks table rows.
var DefaultTextSelectors = []string{"table", "tr"}

// TextOptions controls how element text is split and cleaned.
type TextOptions struct {
	Sep        string   // Default "\n"
	Omit       []string // Regex patterns removed from every field
	IgnoreCase bool     // Applies to Omit
	TrimSpace  bool     // Trim each field
	DropEmpty  bool     // Remove fields left empty
}

// Texts narrows the document through selectors and returns the text of each final
// element split by opts.Sep. The first selector is searched in the whole document;
// every later one only inside the first match of the previous step.
func Texts(doc *goquery.Document, selectors []string, opts TextOptions) ([][]string, error) {
	if len(selectors) == 0 {
		selectors = DefaultTextSelectors
	}
	sep := opts.Sep
	if sep == "" {
		sep = "\n"
	}

	sel := doc.Find(selectors[0])
	for _, next := range selectors[1:] {
		sel = sel.First().Find(next)
	}

	var rows [][]string
	var err error
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		fields := strings.Split(s.Text(), sep)
		if opts.TrimSpace {
			for i := range fields {
				fields[i] = strings.TrimSpace(fields[i])
			}
		}
		if len(opts.Omit) > 0 || opts.DropEmpty {
			fields, err = utils.OmitStrings(fields, opts.Omit, opts.IgnoreCase, opts.DropEmpty)
			if err != nil {
				return false
			}
		}
		rows = append(rows, fields)
		return true
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Markdown converts a selection to Markdown. domain, when set, makes relative links absolute.
func Markdown(sel *goquery.Selection, domain string) string {
	converter := md.NewConverter(domain, true, nil)
	return converter.Convert(sel)
}

// MarkdownString converts an HTML fragment to Markdown.
func MarkdownString(html, domain string) (string, error) {
	converter := md.NewConverter(domain, true, nil)
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", utils.WrapErrorf(utils.ErrParsing, "HTML to Markdown: %v", err)
	}
	return out, nil
}
