package models

import (
	"strings"
	"time"
)

// Placeholder marks a field that was looked for but not found.
const Placeholder = "N/A"

// Canonical field names, as written to CSV headers.
const (
	FieldURL             = "URL"
	FieldSourceSite      = "Source_Site"
	FieldScrapeDate      = "Scrape_Date"
	FieldAddress         = "Address"
	FieldStreet          = "Street"
	FieldCity            = "City"
	FieldPostalCode      = "Postal_Code"
	FieldPrice           = "Price"
	FieldPropertyType    = "Property_Type"
	FieldBedrooms        = "Bedrooms"
	FieldLivingArea      = "Living_Area"
	FieldLotSize         = "Lot_Size"
	FieldBuiltYear       = "Built_Year"
	FieldRooms           = "Rooms"
	FieldBathrooms       = "Bathrooms"
	FieldToilets         = "Toilets"
	FieldFloorCount      = "Floor_Count"
	FieldBasementSize    = "Basement_Size"
	FieldEnergyLabel     = "Energy_Label"
	FieldWeightedArea    = "Weighted_Area"
	FieldLastRemodelYear = "Last_Remodel_Year"
	FieldHeatingType     = "Heating_Type"
	FieldWallMaterial    = "Wall_Material"
	FieldRoofType        = "Roof_Type"
	FieldMonthlyCost     = "Monthly_Cost"
	FieldReference       = "Reference"
	FieldDaysOnMarket    = "Days_On_Market"
)

// DefaultFields are present on every record, initialised to Placeholder.
var DefaultFields = []string{
	FieldURL, FieldSourceSite, FieldScrapeDate, FieldAddress, FieldCity,
	FieldPostalCode, FieldPrice, FieldPropertyType, FieldBedrooms, FieldLivingArea,
	FieldLotSize, FieldBuiltYear, FieldRooms, FieldBathrooms, FieldToilets,
	FieldFloorCount, FieldBasementSize, FieldEnergyLabel, FieldWeightedArea,
	FieldLastRemodelYear,
}

// RequiredFields should be filled on a usable record.
var RequiredFields = []string{
	FieldURL, FieldSourceSite, FieldScrapeDate, FieldAddress, FieldCity, FieldPostalCode,
}

// PropertyRecord is one scraped property detail page.
type PropertyRecord struct {
	ID     string
	Fields map[string]string
}

func NewPropertyRecord(id, url, site string, scrapedAt time.Time) *PropertyRecord {
	r := &PropertyRecord{
		ID:     id,
		Fields: make(map[string]string, len(DefaultFields)),
	}
	for _, f := range DefaultFields {
		r.Fields[f] = Placeholder
	}
	r.Fields[FieldURL] = url
	r.Fields[FieldSourceSite] = site
	r.Fields[FieldScrapeDate] = scrapedAt.Format("2006-01-02")
	return r
}

// IsEmptyValue reports whether v carries no information.
func IsEmptyValue(v string) bool {
	switch strings.TrimSpace(v) {
	case "", Placeholder, "n/a", "-", "–", "—", "None", "null":
		return true
	}
	return false
}

func (r *PropertyRecord) Get(field string) string {
	return r.Fields[field]
}

// Has reports whether field holds a non-placeholder value.
func (r *PropertyRecord) Has(field string) bool {
	return !IsEmptyValue(r.Fields[field])
}

func (r *PropertyRecord) Set(field, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[field] = value
}

// SetIfEmpty writes value only when the field is currently empty.
func (r *PropertyRecord) SetIfEmpty(field, value string) bool {
	if r.Has(field) || IsEmptyValue(value) {
		return false
	}
	r.Set(field, value)
	return true
}

// Missing returns the subset of fields that are empty on r.
func (r *PropertyRecord) Missing(fields []string) []string {
	var out []string
	for _, f := range fields {
		if !r.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// FilledCount is the number of non-placeholder fields.
func (r *PropertyRecord) FilledCount() int {
	n := 0
	for _, v := range r.Fields {
		if !IsEmptyValue(v) {
			n++
		}
	}
	return n
}

// ListingRow is one row of the batch input CSV.
type ListingRow struct {
	PropertyID string
	Link       string
	Raw        map[string]string
}
