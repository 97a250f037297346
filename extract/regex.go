package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractRegex scans the visible text of html with the ordered field
// patterns in rules. For each field the first match that survives value
// normalization wins. Keys are the same lowercase keys Structural uses.
func ExtractRegex(html string, rules *Rules) map[string]string {
	return extractRegexText(visibleText(html), rules)
}

// ExtractRegexDocument is ExtractRegex for an already parsed page.
func ExtractRegexDocument(doc *goquery.Document, rules *Rules) map[string]string {
	if doc == nil {
		return map[string]string{}
	}
	return extractRegexText(documentText(doc.Selection), rules)
}

func extractRegexText(text string, rules *Rules) map[string]string {
	out := make(map[string]string)
	if text == "" {
		return out
	}

	for _, fp := range rules.patterns {
		kind := KindText
		if field, ok := rules.CanonicalField(fp.field); ok {
			kind = rules.KindOf(field)
		}
	patterns:
		for _, re := range fp.patterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				if len(m) < 2 {
					continue
				}
				if v, ok := NormalizeString(m[1], kind); ok {
					out[fp.field] = v
					break patterns
				}
			}
		}
	}

	for _, pt := range rules.propertyTypes {
		if strings.Contains(text, pt) {
			out["property_type"] = pt
			break
		}
	}
	return out
}

// visibleText returns the page text with one space between text nodes and
// script/style content removed. Unparseable input is scanned as-is.
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return documentText(doc.Selection)
}

func documentText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "script", "style", "noscript", "template":
				return
			case "#text":
				b.WriteString(c.Text())
				b.WriteByte(' ')
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return cleanText(b.String())
}
