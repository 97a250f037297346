package services

import (
	"fmt"
	"log"

	"bolig_scrooper/models"
	"bolig_scrooper/storage"
)

// detailSuffix is appended to detail columns whose name is already used
// by the per-sale table.
const detailSuffix = "_details"

// AttributeFields are the property attributes whose absence is reported
// after a merge.
var AttributeFields = []string{
	models.FieldLivingArea, models.FieldHeatingType, models.FieldRoofType, models.FieldWallMaterial,
}

type MergeStats struct {
	SaleRows         int
	DetailRecords    int
	Matched          int
	MissingAttrs     int
	MissingByField   map[string]int
	MissingAttrShare float64
}

// MergePerSale left-joins one row per sale with the property details on
// Property ID. Every sale row is kept; cells without a value become N/A.
func MergePerSale(sales *storage.Table, details []*models.PropertyRecord) (*storage.Table, MergeStats) {
	stats := MergeStats{
		SaleRows:       len(sales.Rows),
		DetailRecords:  len(details),
		MissingByField: make(map[string]int, len(AttributeFields)),
	}

	byID := make(map[string]*models.PropertyRecord, len(details))
	for _, rec := range details {
		if _, dup := byID[rec.ID]; !dup {
			byID[rec.ID] = rec
		}
	}

	out := &storage.Table{Columns: append([]string(nil), sales.Columns...)}
	rename := make(map[string]string)
	for _, col := range storage.PropertyColumns(details) {
		if col == storage.ColPropertyID2 {
			continue
		}
		name := col
		if out.Has(col) {
			name = col + detailSuffix
		}
		rename[col] = name
		out.Columns = append(out.Columns, name)
	}

	for _, sale := range sales.Rows {
		row := make(map[string]string, len(out.Columns))
		for k, v := range sale {
			row[k] = v
		}

		rec, ok := byID[sale[storage.ColPropertyID]]
		if ok {
			stats.Matched++
			for col, name := range rename {
				row[name] = rec.Get(col)
			}
		}

		missing := false
		for _, f := range AttributeFields {
			if models.IsEmptyValue(row[rename[f]]) {
				stats.MissingByField[f]++
				missing = true
			}
		}
		if missing {
			stats.MissingAttrs++
		}

		for _, col := range out.Columns {
			if models.IsEmptyValue(row[col]) {
				row[col] = models.Placeholder
			}
		}
		out.Rows = append(out.Rows, row)
	}

	if stats.SaleRows > 0 {
		stats.MissingAttrShare = float64(stats.MissingAttrs) / float64(stats.SaleRows)
	}
	return out, stats
}

// MergeFiles reads the expanded sales and details CSVs, merges them and
// writes the result to outPath.
func MergeFiles(expandedPath, detailsPath, outPath string) (MergeStats, error) {
	sales, err := storage.ReadTable(expandedPath)
	if err != nil {
		return MergeStats{}, fmt.Errorf("read sales: %w", err)
	}
	details, err := storage.ReadProperties(detailsPath)
	if err != nil {
		return MergeStats{}, fmt.Errorf("read details: %w", err)
	}
	log.Printf("Merging %d sale rows with %d property records", len(sales.Rows), len(details))

	merged, stats := MergePerSale(sales, details)
	if len(merged.Rows) == 0 {
		return stats, storage.ErrNoRecords
	}
	if err := storage.WriteTable(outPath, merged); err != nil {
		return stats, fmt.Errorf("write %s: %w", outPath, err)
	}

	log.Printf("Merged records: %d (%d matched a property)", len(merged.Rows), stats.Matched)
	log.Printf("Transactions with missing property attributes: %d (%.2f%%)",
		stats.MissingAttrs, stats.MissingAttrShare*100)
	return stats, nil
}
