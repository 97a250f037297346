package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"bolig_scrooper/identity"
	"bolig_scrooper/models"
)

var (
	ErrMissingLinkColumn = errors.New("input has no Link column")
	ErrNoRecords         = errors.New("no records to write")
)

// Column names shared by the index and details CSVs.
const (
	ColPropertyID  = "Property ID"
	ColPropertyID2 = "Property_ID"
	ColAddress     = "Address"
	ColLink        = "Link"
	ColSales       = "Sales"
	ColSaleType    = "Sale Type"
	ColSaleDate    = "Sale Date"
	ColPrice       = "Price"
	ColSaleIndex   = "Sale Index"
	ColTotalSales  = "Total Sales"
)

var idColumns = []string{ColPropertyID, ColPropertyID2, "ID"}

// Table is a CSV file held in memory with its column order.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Has reports whether the table has a column named col.
func (t *Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// ReadTable loads a CSV with a header row.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Columns: header}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteTable writes t to path, filling absent cells with empty strings.
func WriteTable(path string, t *Table) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(t.Columns); err != nil {
			return err
		}
		for _, row := range t.Rows {
			rec := make([]string, len(t.Columns))
			for i, col := range t.Columns {
				rec[i] = row[col]
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeCSV writes through a temp file in the same directory and renames
// it over path, so readers never see a half-written file.
func writeCSV(path string, fn func(w *csv.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := fn(w); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadListings reads the batch input. A Link column is required; the id
// comes from "Property ID", "Property_ID" or "ID" and falls back to the
// last path segment of the link.
func ReadListings(path string) ([]models.ListingRow, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if !t.Has(ColLink) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingLinkColumn)
	}

	idCol := ""
	for _, c := range idColumns {
		if t.Has(c) {
			idCol = c
			break
		}
	}

	rows := make([]models.ListingRow, 0, len(t.Rows))
	for _, raw := range t.Rows {
		link := strings.TrimSpace(raw[ColLink])
		id := ""
		if idCol != "" {
			id = strings.TrimSpace(raw[idCol])
		}
		if id == "" {
			id = identity.PropertyIDFromURL(link)
		}
		rows = append(rows, models.ListingRow{PropertyID: id, Link: link, Raw: raw})
	}
	return rows, nil
}

// PropertyColumns returns Property_ID followed by the sorted union of all
// record fields.
func PropertyColumns(recs []*models.PropertyRecord) []string {
	set := make(map[string]bool)
	for _, r := range recs {
		for k := range r.Fields {
			if k != ColPropertyID2 {
				set[k] = true
			}
		}
	}
	cols := make([]string, 0, len(set)+1)
	for k := range set {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return append([]string{ColPropertyID2}, cols...)
}

// WriteProperties writes one row per record. Fields a record lacks are
// written as N/A.
func WriteProperties(path string, recs []*models.PropertyRecord) error {
	if len(recs) == 0 {
		return ErrNoRecords
	}
	cols := PropertyColumns(recs)
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(cols); err != nil {
			return err
		}
		for _, r := range recs {
			row := make([]string, len(cols))
			row[0] = r.ID
			for i, c := range cols[1:] {
				v, ok := r.Fields[c]
				if !ok || v == "" {
					v = models.Placeholder
				}
				row[i+1] = v
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadProperties loads a details CSV written by WriteProperties.
func ReadProperties(path string) ([]*models.PropertyRecord, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	recs := make([]*models.PropertyRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := &models.PropertyRecord{Fields: make(map[string]string, len(row))}
		for k, v := range row {
			if k == ColPropertyID2 || k == ColPropertyID {
				rec.ID = v
				continue
			}
			rec.Fields[k] = v
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// WriteSummaries writes the index crawl output with Sales as a JSON list.
func WriteSummaries(path string, summaries []models.PropertySummary) error {
	if len(summaries) == 0 {
		return ErrNoRecords
	}
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{ColPropertyID, ColAddress, ColLink, ColSales}); err != nil {
			return err
		}
		for _, s := range summaries {
			sales, err := json.Marshal(s.Sales)
			if err != nil {
				return fmt.Errorf("marshal sales for %s: %w", s.PropertyID, err)
			}
			if err := w.Write([]string{s.PropertyID, s.Address, s.Link, string(sales)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadSummaries is the inverse of WriteSummaries. Rows whose Sales cell
// does not decode get a single placeholder sale.
func ReadSummaries(path string) ([]models.PropertySummary, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]models.PropertySummary, 0, len(t.Rows))
	for _, row := range t.Rows {
		s := models.PropertySummary{
			PropertyID: row[ColPropertyID],
			Address:    row[ColAddress],
			Link:       row[ColLink],
		}
		if err := json.Unmarshal([]byte(row[ColSales]), &s.Sales); err != nil || len(s.Sales) == 0 {
			s.Sales = []models.SaleRecord{{}}
		}
		out = append(out, s)
	}
	return out, nil
}

// ExpandSales flattens summaries into one row per sale.
func ExpandSales(summaries []models.PropertySummary) *Table {
	t := &Table{Columns: []string{ColPropertyID, ColAddress, ColLink, ColSaleType, ColSaleDate, ColPrice, ColSaleIndex, ColTotalSales}}
	for _, s := range summaries {
		for i, sale := range s.Sales {
			row := map[string]string{
				ColPropertyID: s.PropertyID,
				ColAddress:    s.Address,
				ColLink:       s.Link,
				ColSaleIndex:  strconv.Itoa(i + 1),
				ColTotalSales: strconv.Itoa(len(s.Sales)),
			}
			if sale.Type != nil {
				row[ColSaleType] = *sale.Type
			}
			if sale.Date != nil {
				row[ColSaleDate] = *sale.Date
			}
			if sale.Price != nil {
				row[ColPrice] = strconv.FormatFloat(*sale.Price, 'f', -1, 64)
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// WriteExpandedSales writes ExpandSales(summaries) to path.
func WriteExpandedSales(path string, summaries []models.PropertySummary) error {
	if len(summaries) == 0 {
		return ErrNoRecords
	}
	return WriteTable(path, ExpandSales(summaries))
}
