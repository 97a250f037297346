package extract

import (
	"regexp"

	"bolig_scrooper/models"
)

// SelectorSet is one (section, row, label, value) candidate. Every list is
// tried in order; sections and rows are unioned, label and value take the
// first selector that matches inside a row.
type SelectorSet struct {
	Name     string
	Sections []string
	Rows     []string
	Labels   []string
	Values   []string
}

type fieldPatterns struct {
	field    string
	patterns []*regexp.Regexp
}

// Rules is the immutable extraction configuration shared by every
// extractor. Build it with DefaultRules and extend it with WithSite.
type Rules struct {
	selectorSets  []SelectorSet
	pageLabels    LabelTable
	modalLabels   LabelTable
	patterns      []fieldPatterns
	detailFields  map[string]string
	fieldKinds    map[string]Kind
	propertyTypes []string
}

var defaultPageLabels = map[string]string{
	"boligareal":   "living_area",
	"areal":        "area",
	"grundareal":   "plot_area",
	"vægtet areal": "weighted_area",
	"værelser":     "rooms",
	"rum":          "rooms",
	"byggeår":      "build_year",
	"opført":       "build_year",
	"opførelsesår": "build_year",
	"ombygning":    "last_remodel_year",
	"energimærke":  "energy_label",
	"energi":       "energy_label",
	"sagsnr":       "case_number",
	"kontantpris":  "price",
	"pris pr. m²":  "price_per_m2",
	"m²-pris":      "price_per_m2",
	"kvm-pris":     "price_per_m2",
	"pris":         "price",
	"ejerudgift":   "owner_cost",
	"brutto/netto": "gross_net",
	"udbetaling":   "down_payment",
	"grundskyld":   "property_tax",
	"boligtype":    "property_type",
	"etage":        "floor",
	"kælder":       "basement",
	"liggetid":     "days_on_market",
	"toilet":       "toilets",
	"badeværelse":  "bathrooms",
	"varme":        "heating_type",
	"tag":          "roof_type",
	"ydervæg":      "wall_material",
	"ydermur":      "wall_material",
}

var defaultModalLabels = map[string]string{
	"Seneste ombygningsår": models.FieldLastRemodelYear,
	"Ombygningsår":         models.FieldLastRemodelYear,
	"Antal plan og etage":  models.FieldFloorCount,
	"Antal plan":           models.FieldFloorCount,
	"Etage":                models.FieldFloorCount,
	"Antal toiletter":      models.FieldToilets,
	"Toiletter":            models.FieldToilets,
	"Varmeinstallation":    models.FieldHeatingType,
	"Varme":                models.FieldHeatingType,
	"Ydervægge":            models.FieldWallMaterial,
	"Ydermur":              models.FieldWallMaterial,
	"Vægtet areal":         models.FieldWeightedArea,
	"Tagtype":              models.FieldRoofType,
	"Tag":                  models.FieldRoofType,
	"Boligareal":           models.FieldLivingArea,
	"Areal":                models.FieldLivingArea,
	"Grundareal":           models.FieldLotSize,
	"Grund":                models.FieldLotSize,
	"Opførelsesår":         models.FieldBuiltYear,
	"Byggeår":              models.FieldBuiltYear,
	"Opført":               models.FieldBuiltYear,
	"Antal værelser":       models.FieldRooms,
	"Værelser":             models.FieldRooms,
	"Antal badeværelser":   models.FieldBathrooms,
	"Badeværelser":         models.FieldBathrooms,
	"Kælderareal":          models.FieldBasementSize,
	"Kælder":               models.FieldBasementSize,
	"Energimærke":          models.FieldEnergyLabel,
	"Boligtype":            models.FieldPropertyType,
	"Ejendomstype":         models.FieldPropertyType,
	"Type":                 models.FieldPropertyType,
}

var defaultDetailFields = map[string]string{
	"living_area":       models.FieldLivingArea,
	"area":              models.FieldLivingArea,
	"plot_area":         models.FieldLotSize,
	"rooms":             models.FieldRooms,
	"bedrooms":          models.FieldBedrooms,
	"build_year":        models.FieldBuiltYear,
	"energy_label":      models.FieldEnergyLabel,
	"price":             models.FieldPrice,
	"owner_cost":        models.FieldMonthlyCost,
	"case_number":       models.FieldReference,
	"property_type":     models.FieldPropertyType,
	"floor":             models.FieldFloorCount,
	"basement":          models.FieldBasementSize,
	"days_on_market":    models.FieldDaysOnMarket,
	"bathrooms":         models.FieldBathrooms,
	"toilets":           models.FieldToilets,
	"weighted_area":     models.FieldWeightedArea,
	"last_remodel_year": models.FieldLastRemodelYear,
	"heating_type":      models.FieldHeatingType,
	"roof_type":         models.FieldRoofType,
	"wall_material":     models.FieldWallMaterial,
}

var defaultFieldKinds = map[string]Kind{
	models.FieldLivingArea:      KindArea,
	models.FieldLotSize:         KindArea,
	models.FieldBasementSize:    KindArea,
	models.FieldWeightedArea:    KindArea,
	models.FieldRooms:           KindNumber,
	models.FieldBedrooms:        KindNumber,
	models.FieldBathrooms:       KindNumber,
	models.FieldToilets:         KindNumber,
	models.FieldFloorCount:      KindNumber,
	models.FieldDaysOnMarket:    KindNumber,
	models.FieldPrice:           KindPrice,
	models.FieldMonthlyCost:     KindPrice,
	models.FieldBuiltYear:       KindYear,
	models.FieldLastRemodelYear: KindYear,
	models.FieldEnergyLabel:     KindEnergy,
}

var defaultPropertyTypes = []string{
	"Villa", "Lejlighed", "Rækkehus", "Ejerlejlighed", "Fritidshus", "Andelsbolig",
}

var defaultSelectorSets = []SelectorSet{
	{
		Name: "facts",
		Sections: []string{
			".property-details", ".property-specs", ".property-info",
			"[class*='details']", "[class*='specs']", "[class*='info']",
			"[id*='details']", "[id*='specifications']", "[id*='info']",
			"section", "article", ".facts-table", ".estateFacts",
		},
		Rows: []string{
			"tr", ".fact-row", ".detail-row", "li", ".item",
			"[class*='row']", "[class*='item']", "[class*='field']",
		},
		Labels: []string{".label", ".key", ".name", "dt", "th", "[class*='label']", "[class*='key']", "label"},
		Values: []string{".value", ".val", ".data", "dd", "td", "[class*='value']", "[class*='val']"},
	},
	{
		Name: "overview",
		Sections: []string{
			"div.scroll-mt-0", "div#oversigt", "div.pt-22",
			"div.flex", "div.space-y-2", "div.whitespace-nowrap",
		},
		Rows: []string{
			"div.inline-flex", "div.space-y-2", "div.justify-between",
			"div.mt-4", "div.mb-6", "div.whitespace-nowrap",
			"div[class*='tag']", "span[class*='text']",
		},
		Labels: []string{"div.text-xs", "[class*='label']", "dt"},
		Values: []string{"div.text-sm", "div.text-blue-900", "span.text-blue-900", "dd"},
	},
}

func mustPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func defaultPatterns() []fieldPatterns {
	return []fieldPatterns{
		{"living_area", mustPatterns(
			`(?i)(?:Boligareal|Bolig|Areal|Living area|Area)(?:\s*:)?\s*(\d+(?:[,.]\d+)?)\s*(?:m²|m2|kvm|sqm)`,
			`(?i)(\d+(?:[,.]\d+)?)\s*(?:m²|m2|kvm|sqm)(?:\s*bolig|-areal|boligareal|living area|area)`,
			`(?i)areal(?:\s*:)?\s*(\d+(?:[,.]\d+)?)\s*(?:m²|m2|kvm|sqm)`,
			`(?i)(?:etageareal|ejendomsareal)(?:\s*:)?\s*(\d+(?:[,.]\d+)?)\s*(?:m²|m2|kvm|sqm)`,
			`(\d+)\s*(?:m²|kvm)`,
		)},
		{"rooms", mustPatterns(
			`(?i)\b(?:Værelser|Rooms)(?:\s*:)?\s*(\d+)`,
			`(?i)(\d+)\s*(?:værelser|vær\.|rooms)`,
			`(?i)\bantal\s*(?:rum|værelser)(?:\s*:)?\s*(\d+)`,
		)},
		{"build_year", mustPatterns(
			`(?i)(?:Byggeår|Bygget|Opført|Built|Construction year)(?:\s*:)?\s*(\d{4})`,
			`(?i)(?:opført|bygget)(?:\s+i)?\s*(?:år)?\s*(\d{4})`,
			`(?i)(?:year|år)(?:\s+of)?\s*(?:construction|built|opført)(?:\s*:)?\s*(\d{4})`,
		)},
		{"energy_label", mustPatterns(
			`[Ee]nergimærke:?\s*([A-G](?:\d{4}|\+{1,2})?)(?:[^\p{L}\d+]|$)`,
			`(?i)(?:Energimærke|Energimaerke|Energy label|Energy rating|Energy class)(?:\s*:)?\s*([A-G](?:\d{4}|\+{1,2})?)(?:[^\p{L}\d+]|$)`,
			`(?i)(?:energy|energi)(?:\s*[-:])?\s+([A-G](?:\d{4}|\+{1,2})?)(?:[^\p{L}\d+]|$)`,
			`(?i)\b([A-G](?:\d{4}|\+{1,2})?)-?mærk(?:e|ning)?`,
		)},
		{"price", mustPatterns(
			`(?i)(?:Kontantpris|Pris|Price|Asking price)(?:\s*:)?\s*(?:kr\.?|DKK|€)?\s*(\d[\d.,]*)`,
			`(?i)(\d[\d.,]*)\s*(?:kr\.|kr\b|DKK|€)`,
			`(?i)(?:kr\.?|DKK|€)\s*(\d[\d.,]*)`,
			`(?i)(?:salgspris|købspris|handelspris)(?:\s*:)?\s*(?:kr\.?|DKK|€)?\s*(\d[\d.,]*)`,
		)},
	}
}

// DefaultRules returns the built-in boligsiden.dk extraction rules.
func DefaultRules() *Rules {
	kinds := make(map[string]Kind, len(defaultFieldKinds))
	for k, v := range defaultFieldKinds {
		kinds[k] = v
	}
	details := make(map[string]string, len(defaultDetailFields))
	for k, v := range defaultDetailFields {
		details[k] = v
	}
	sets := make([]SelectorSet, len(defaultSelectorSets))
	copy(sets, defaultSelectorSets)

	return &Rules{
		selectorSets:  sets,
		pageLabels:    NewLabelTable(defaultPageLabels),
		modalLabels:   NewLabelTable(defaultModalLabels),
		patterns:      defaultPatterns(),
		detailFields:  details,
		fieldKinds:    kinds,
		propertyTypes: append([]string(nil), defaultPropertyTypes...),
	}
}

// WithSite returns a copy of r extended with site-specific labels and
// property type keywords. r itself is not modified.
func (r *Rules) WithSite(pageLabels, modalLabels map[string]string, propertyTypes []string) *Rules {
	out := *r
	out.pageLabels = r.pageLabels.With(pageLabels)
	out.modalLabels = r.modalLabels.With(modalLabels)
	if len(propertyTypes) > 0 {
		out.propertyTypes = append([]string(nil), propertyTypes...)
	}
	return &out
}

// CanonicalField maps a lowercase extractor key to its record field.
func (r *Rules) CanonicalField(key string) (string, bool) {
	f, ok := r.detailFields[key]
	return f, ok
}

// KindOf returns how values of a canonical field are normalized.
func (r *Rules) KindOf(field string) Kind {
	if k, ok := r.fieldKinds[field]; ok {
		return k
	}
	return KindText
}

func (r *Rules) PageLabels() LabelTable  { return r.pageLabels }
func (r *Rules) ModalLabels() LabelTable { return r.modalLabels }
