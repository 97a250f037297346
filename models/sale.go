package models

// SaleRecord is one historical transaction shown on an index card.
// A nil field means the value was not present.
type SaleRecord struct {
	Type  *string  `json:"Sale Type"`
	Date  *string  `json:"Sale Date"`
	Price *float64 `json:"Price"`
}

// IsPlaceholder reports whether the sale carries no data at all.
func (s SaleRecord) IsPlaceholder() bool {
	return s.Type == nil && s.Date == nil && s.Price == nil
}

// PropertySummary is one listing card from the auction index.
type PropertySummary struct {
	PropertyID string
	Address    string
	Link       string
	Sales      []SaleRecord
}
