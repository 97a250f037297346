package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy pulls label/value pairs out of a document. An empty result
// means the strategy did not apply.
type Strategy func(doc *goquery.Document) map[string]string

// FirstSuccess returns the result of the first strategy that finds anything.
func FirstSuccess(strategies ...Strategy) Strategy {
	return func(doc *goquery.Document) map[string]string {
		for _, s := range strategies {
			if out := s(doc); len(out) > 0 {
				return out
			}
		}
		return nil
	}
}

// FillMissing runs every strategy in order; later strategies only add keys
// that earlier ones did not produce.
func FillMissing(strategies ...Strategy) Strategy {
	return func(doc *goquery.Document) map[string]string {
		out := make(map[string]string)
		for _, s := range strategies {
			for k, v := range s(doc) {
				if _, ok := out[k]; !ok && v != "" {
					out[k] = v
				}
			}
		}
		return out
	}
}

// onlyMissing wraps a strategy for one key so it is skipped when that key
// is already known. Used for the page-level fallbacks.
func onlyMissing(key string, known map[string]string, s Strategy) Strategy {
	return func(doc *goquery.Document) map[string]string {
		if _, ok := known[key]; ok {
			return nil
		}
		return s(doc)
	}
}

var (
	areaTextRe   = regexp.MustCompile(`(\d+(?:[,.]\d+)?)\s*m²`)
	roomsTextRe  = regexp.MustCompile(`(\d+)\s*værelser`)
	toiletTextRe = regexp.MustCompile(`(\d+)\s*toilet`)
	firstIntRe   = regexp.MustCompile(`\d+`)
	energyLetter = regexp.MustCompile(`(?i)(?:^|[^\p{L}\d])([a-g][+\-]?)(?:[^\p{L}\d]|$)`)
)

// Structural runs the full selector cascade against doc and returns
// lowercase label keys mapped to raw value strings. Labels found in the
// page label table are replaced by their canonical key; others are kept
// as cleaned lowercase text.
func Structural(doc *goquery.Document, rules *Rules) map[string]string {
	if doc == nil {
		return map[string]string{}
	}

	var strategies []Strategy
	for _, set := range rules.selectorSets {
		strategies = append(strategies, selectorSetStrategy(set, rules.pageLabels))
	}
	strategies = append(strategies, definitionListStrategy(rules.pageLabels))

	found := FillMissing(strategies...)(doc)

	fallbacks := FillMissing(
		onlyMissing("energy_label", found, FirstSuccess(energyFromImage, energyFromSVG, energyFromText)),
		onlyMissing("price", found, priceFromHeader),
		onlyMissing("property_type", found, propertyTypeFromTag),
		onlyMissing("rooms", found, roomsFromTag),
		onlyMissing("living_area", found, areaFromTag),
	)(doc)
	for k, v := range fallbacks {
		if _, ok := found[k]; !ok {
			found[k] = v
		}
	}
	return found
}

func selectorSetStrategy(set SelectorSet, labels LabelTable) Strategy {
	return func(doc *goquery.Document) map[string]string {
		out := make(map[string]string)
		if len(set.Sections) == 0 || len(set.Rows) == 0 {
			return out
		}

		sections := doc.Find(strings.Join(set.Sections, ", "))
		rows := sections.Find(strings.Join(set.Rows, ", "))
		rows.Each(func(_ int, row *goquery.Selection) {
			label, value, ok := rowPair(row, set)
			if !ok {
				return
			}
			addPair(out, labels, label, value)
		})
		return out
	}
}

func definitionListStrategy(labels LabelTable) Strategy {
	return func(doc *goquery.Document) map[string]string {
		out := make(map[string]string)
		doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
			dd := dt.NextFiltered("dd")
			if dd.Length() == 0 {
				return
			}
			addPair(out, labels, dt.Text(), dd.Text())
		})
		return out
	}
}

// addPair records label/value unless the key already has a value.
// Synthetic labels from row heuristics arrive prefixed with "=".
func addPair(out map[string]string, labels LabelTable, label, value string) {
	value = cleanText(value)
	if value == "" {
		return
	}

	var key string
	if strings.HasPrefix(label, "=") {
		key = strings.TrimPrefix(label, "=")
	} else {
		key = CleanLabel(label)
		if key == "" {
			return
		}
		if mapped, ok := labels.Lookup(key); ok {
			key = mapped
		}
	}
	if _, exists := out[key]; !exists {
		out[key] = value
	}
}

// rowPair finds a label and value inside one row, trying the selector set
// first and then the layout heuristics.
func rowPair(row *goquery.Selection, set SelectorSet) (string, string, bool) {
	labelSel := firstMatch(row, set.Labels)
	valueSel := firstMatch(row, set.Values)
	if labelSel != nil && valueSel != nil && !labelSel.IsSelection(valueSel) {
		return labelSel.Text(), valueSel.Text(), true
	}

	for _, h := range rowHeuristics {
		if label, value, ok := h(row); ok {
			return label, value, true
		}
	}
	return "", "", false
}

func firstMatch(row *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := row.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

type rowHeuristic func(row *goquery.Selection) (label, value string, ok bool)

var rowHeuristics = []rowHeuristic{
	strongSpanPair,
	headingParagraphPair,
	svgIconPair,
	unitTextPair,
	childPair,
}

func strongSpanPair(row *goquery.Selection) (string, string, bool) {
	strong := row.Find("strong").First()
	if strong.Length() == 0 {
		return "", "", false
	}
	var value string
	row.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		if span.Has("strong").Length() > 0 || span.ParentsFiltered("strong").Length() > 0 {
			return true
		}
		value = span.Text()
		return false
	})
	if strings.TrimSpace(value) == "" {
		return "", "", false
	}
	return strong.Text(), value, true
}

func headingParagraphPair(row *goquery.Selection) (string, string, bool) {
	heading := row.Find("h3, h4, h5").First()
	p := row.Find("p").First()
	if heading.Length() == 0 || p.Length() == 0 {
		return "", "", false
	}
	return heading.Text(), p.Text(), true
}

func svgIconPair(row *goquery.Selection) (string, string, bool) {
	svg := row.Find("svg").First()
	if svg.Length() == 0 {
		return "", "", false
	}

	class := strings.ToLower(svg.AttrOr("class", ""))
	var key string
	switch {
	case strings.Contains(class, "floor") || strings.Contains(class, "home"):
		key = "living_area"
	case strings.Contains(class, "bed"):
		key = "rooms"
	case strings.Contains(class, "bath") || strings.Contains(class, "toilet"):
		key = "bathrooms"
	default:
		return "", "", false
	}

	var value string
	seen := false
	svg.Parent().Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if !seen {
			seen = c.IsSelection(svg)
			return true
		}
		switch goquery.NodeName(c) {
		case "#text":
			if strings.TrimSpace(c.Text()) == "" {
				return true
			}
			value = c.Text()
		case "span":
			value = c.Text()
		}
		return false
	})
	if strings.TrimSpace(value) == "" {
		return "", "", false
	}
	return "=" + key, value, true
}

func unitTextPair(row *goquery.Selection) (string, string, bool) {
	text := row.Text()
	switch {
	case strings.Contains(text, "m²"):
		if m := areaTextRe.FindStringSubmatch(text); m != nil {
			return "=living_area", m[1], true
		}
	case strings.Contains(text, "værelser"):
		if m := roomsTextRe.FindStringSubmatch(text); m != nil {
			return "=rooms", m[1], true
		}
	case strings.Contains(text, "toilet"):
		if m := toiletTextRe.FindStringSubmatch(text); m != nil {
			return "=toilets", m[1], true
		}
	}
	return "", "", false
}

func childPair(row *goquery.Selection) (string, string, bool) {
	for _, tag := range []string{"div", "span"} {
		children := row.ChildrenFiltered(tag)
		if children.Length() >= 2 {
			return children.Eq(0).Text(), children.Eq(1).Text(), true
		}
	}
	return "", "", false
}

func energyFromImage(doc *goquery.Document) map[string]string {
	var label string
	doc.Find("img[src*='energy'], img[alt*='energy'], img[src*='energi'], img[alt*='energi']").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if m := energyLetter.FindStringSubmatch(img.AttrOr("alt", "") + " " + img.AttrOr("src", "")); m != nil {
			label = strings.ToUpper(m[1])
			return false
		}
		return true
	})
	if label == "" {
		return nil
	}
	return map[string]string{"energy_label": label}
}

func energyFromSVG(doc *goquery.Document) map[string]string {
	var label string
	doc.Find("svg[class*='w-7'][class*='h-7'], div.cursor-pointer svg, div[data-tooltipped] svg, div.w-10.h-10 svg").EachWithBreak(func(_ int, svg *goquery.Selection) bool {
		title := strings.ToLower(svg.Find("title").First().Text())
		if !strings.Contains(title, "energimærke") && !strings.Contains(title, "energy") {
			return true
		}
		if strings.Contains(title, "intet") {
			label = "N/A"
			return false
		}
		if m := energyLetter.FindStringSubmatch(strings.TrimPrefix(strings.TrimPrefix(title, "energimærke"), "energy")); m != nil {
			label = strings.ToUpper(m[1])
			return false
		}
		return true
	})
	if label == "" {
		return nil
	}
	return map[string]string{"energy_label": label}
}

func energyFromText(doc *goquery.Document) map[string]string {
	var label string
	doc.Find("[class*='energy-label'], [class*='energi'], [id*='energy'], [id*='energi'], .energy-rating, .energy-class, .energy-certificate").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := parseEnergy(s.Text()); ok {
			label = v
			return false
		}
		return true
	})
	if label == "" {
		return nil
	}
	return map[string]string{"energy_label": label}
}

func priceFromHeader(doc *goquery.Document) map[string]string {
	var price string
	doc.Find("h2.text-blue-900, div.text-blue-900.text-28px, h2.text-28px, .text-blue-900.font-semibold").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if !strings.Contains(text, "kr") && !strings.Contains(text, ".") {
			return true
		}
		if _, ok := Normalize(text, KindPrice); ok {
			price = text
			return false
		}
		return true
	})
	if price == "" {
		return nil
	}
	return map[string]string{"price": price}
}

func propertyTypeFromTag(doc *goquery.Document) map[string]string {
	text := cleanText(doc.Find("p.text-xs span.text-gray-700, span.text-gray-700").First().Text())
	if text == "" {
		return nil
	}
	return map[string]string{"property_type": text}
}

func roomsFromTag(doc *goquery.Document) map[string]string {
	var rooms string
	doc.Find("div.inline-flex span.text-blue-900, div[class*='tag'] span.text-blue-900").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "værelser") {
			return true
		}
		rooms = firstIntRe.FindString(text)
		return rooms == ""
	})
	if rooms == "" {
		return nil
	}
	return map[string]string{"rooms": rooms}
}

func areaFromTag(doc *goquery.Document) map[string]string {
	var area string
	doc.Find("div.inline-flex span.text-blue-900, div[class*='tag'] span.text-blue-900, span[class*='whitespace-nowrap']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if m := areaTextRe.FindStringSubmatch(text); m != nil {
			area = m[1]
			return false
		}
		return true
	})
	if area == "" {
		return nil
	}
	return map[string]string{"living_area": area}
}
