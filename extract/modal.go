package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"bolig_scrooper/models"
)

// ModalRow is one row read from the details dialog. Label and Value come
// from the row's cells when it has them; Text is the row's full text.
type ModalRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Text  string `json:"text"`
}

var closeRowRe = regexp.MustCompile(`\b(?:Luk|Lukk|Ok|OK)\b`)

// ParseModalRows maps dialog rows to canonical record fields using table.
// Labels match table keys as whole words. When several rows map to the
// same field, the row matched by the longest key wins and ties keep the
// first value seen.
func ParseModalRows(rows []ModalRow, table LabelTable) map[string]string {
	out := make(map[string]string)
	matched := make(map[string]int)
	for _, row := range rows {
		text := cleanText(norm.NFC.String(row.Text))
		if text == "" && row.Label == "" {
			continue
		}
		if closeRowRe.MatchString(text) {
			continue
		}

		label, value, ok := splitModalRow(row, text, table)
		if !ok {
			continue
		}

		key, field, ok := table.LookupWord(label)
		if !ok {
			continue
		}
		value = cleanText(value)
		if value == "" {
			continue
		}
		if n := utf8.RuneCountInString(key); n > matched[field] {
			out[field] = value
			matched[field] = n
		}
	}
	return out
}

func splitModalRow(row ModalRow, text string, table LabelTable) (string, string, bool) {
	label := cleanText(row.Label)
	value := cleanText(row.Value)
	if label != "" && value != "" && label != value {
		return label, value, true
	}

	if i := strings.Index(text, ":"); i > 0 {
		return text[:i], text[i+1:], true
	}

	key, _, ok := table.Prefix(text)
	if !ok {
		return "", "", false
	}
	if len(strings.ToLower(text)) != len(text) {
		return "", "", false
	}
	rest := strings.TrimSpace(text[len(key):])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	return text[:len(key)], rest, rest != ""
}

var postalCityRe = regexp.MustCompile(`(\d{4})\s+(.*)`)

// ExtractHeader reads the listing header of a rendered detail page:
// address, postal code and city, price, property type and the area and
// room tags. Keys are canonical record fields.
func ExtractHeader(doc *goquery.Document) map[string]string {
	out := make(map[string]string)
	if doc == nil {
		return out
	}

	if t := firstText(doc, "span.text-gray-700", "p.text-xs span.text-gray-700", "div.text-xs span.text-gray-700"); t != "" {
		out[models.FieldPropertyType] = t
	}

	if t := firstText(doc, "h1.text-blue-900 span.text-lg", "h1.text-blue-900 > span:first-child", "h1.space-y-1 > span:first-child"); t != "" {
		out[models.FieldAddress] = t
	}

	if t := firstText(doc, "h1.text-blue-900 span.block", "h1.space-y-1 > span:nth-child(2)"); t != "" {
		if m := postalCityRe.FindStringSubmatch(t); m != nil {
			out[models.FieldPostalCode] = m[1]
			out[models.FieldCity] = strings.TrimSpace(m[2])
		} else {
			out[models.FieldCity] = t
		}
	}

	if t := firstText(doc, "h2.text-blue-900", "div.text-blue-900.text-28px", "h2.text-28px"); t != "" {
		if _, ok := Normalize(t, KindPrice); ok {
			out[models.FieldPrice] = t
		}
	}

	doc.Find("span:contains('m²')").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := areaTextRe.FindStringSubmatch(s.Text()); m != nil {
			out[models.FieldLivingArea] = m[1]
			return false
		}
		return true
	})

	doc.Find("span:contains('værelser')").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if n := firstIntRe.FindString(s.Text()); n != "" {
			out[models.FieldRooms] = n
			return false
		}
		return true
	})

	return out
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := cleanText(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
