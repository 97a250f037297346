package services

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"bolig_scrooper/models"
	"bolig_scrooper/storage"
)

// EssentialFields must all hold a value for a row to enter the clean dataset.
var EssentialFields = []string{
	models.FieldAddress, models.FieldPropertyType, models.FieldLivingArea,
	models.FieldRooms, models.FieldBuiltYear,
}

// Column types inferred from the filled cells.
const (
	TypeEmpty   = "empty"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeText    = "text"
)

type ColumnStats struct {
	Name     string
	Type     string
	NonEmpty int
	Percent  float64
	Unique   int
	Numeric  bool
	Min      float64
	Max      float64
	Mean     float64
}

type QualityReport struct {
	Rows    int
	Columns []ColumnStats
}

// AnalyzeQuality computes completeness per column. Columns whose filled
// cells all parse as numbers also get min, max and mean.
func AnalyzeQuality(t *storage.Table) QualityReport {
	report := QualityReport{Rows: len(t.Rows)}
	for _, col := range t.Columns {
		cs := ColumnStats{Name: col, Numeric: true}
		integer := true
		unique := make(map[string]bool)
		var sum float64
		for _, row := range t.Rows {
			v := strings.TrimSpace(row[col])
			if models.IsEmptyValue(v) {
				continue
			}
			cs.NonEmpty++
			unique[v] = true

			if !cs.Numeric {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				cs.Numeric = false
				continue
			}
			if f != float64(int64(f)) || strings.ContainsAny(v, ".eE") {
				integer = false
			}
			if cs.NonEmpty == 1 || f < cs.Min {
				cs.Min = f
			}
			if cs.NonEmpty == 1 || f > cs.Max {
				cs.Max = f
			}
			sum += f
		}
		cs.Unique = len(unique)
		switch {
		case cs.NonEmpty == 0:
			cs.Numeric = false
			cs.Type = TypeEmpty
		case !cs.Numeric:
			cs.Type = TypeText
		case integer:
			cs.Type = TypeInteger
		default:
			cs.Type = TypeFloat
		}
		if cs.Numeric {
			cs.Mean = sum / float64(cs.NonEmpty)
		}
		if report.Rows > 0 {
			cs.Percent = float64(cs.NonEmpty) / float64(report.Rows) * 100
		}
		report.Columns = append(report.Columns, cs)
	}
	return report
}

// weakestShown is how many columns the report lists as least complete.
const weakestShown = 5

// Write prints the report as an aligned table followed by the column type
// summary and the least complete columns.
func (r QualityReport) Write(w io.Writer) error {
	fmt.Fprintf(w, "Total rows: %d\nTotal columns: %d\n\n", r.Rows, len(r.Columns))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Column\tType\tNon-Empty\tCompleteness\tUnique\tMin\tMean\tMax")
	for _, c := range r.Columns {
		lo, avg, hi := "", "", ""
		if c.Numeric {
			lo, avg, hi = formatStat(c.Min), formatStat(c.Mean), formatStat(c.Max)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\t%d\t%s\t%s\t%s\n", c.Name, c.Type, c.NonEmpty, c.Percent, c.Unique, lo, avg, hi)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nData types:")
	counts := r.TypeCounts()
	for _, typ := range []string{TypeInteger, TypeFloat, TypeText, TypeEmpty} {
		if counts[typ] > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", typ, counts[typ])
		}
	}

	fmt.Fprintln(w, "\nLeast complete columns:")
	for _, c := range r.Weakest(weakestShown) {
		fmt.Fprintf(w, "  %s: %.1f%%\n", c.Name, c.Percent)
	}
	return nil
}

// TypeCounts returns how many columns have each inferred type.
func (r QualityReport) TypeCounts() map[string]int {
	counts := make(map[string]int)
	for _, c := range r.Columns {
		counts[c.Type]++
	}
	return counts
}

// Weakest returns the n columns with the lowest completeness.
func (r QualityReport) Weakest(n int) []ColumnStats {
	cols := append([]ColumnStats(nil), r.Columns...)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Percent < cols[j].Percent })
	if n < len(cols) {
		cols = cols[:n]
	}
	return cols
}

func formatStat(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

type CleanStats struct {
	Input         int
	Kept          int
	MissingFields int
	InvalidArea   int
	InvalidRooms  int
	FutureBuilt   int
}

// CleanRows keeps the rows that have every essential field, a positive
// living area and room count, and a build year that is not in the future.
func CleanRows(t *storage.Table, now time.Time) (*storage.Table, CleanStats) {
	stats := CleanStats{Input: len(t.Rows)}
	out := &storage.Table{Columns: t.Columns}

	for _, row := range t.Rows {
		if !hasEssentials(row) {
			stats.MissingFields++
			continue
		}
		if f, err := strconv.ParseFloat(row[models.FieldLivingArea], 64); err != nil || f <= 0 {
			stats.InvalidArea++
			continue
		}
		if f, err := strconv.ParseFloat(row[models.FieldRooms], 64); err != nil || f <= 0 {
			stats.InvalidRooms++
			continue
		}
		if y, err := strconv.Atoi(row[models.FieldBuiltYear]); err != nil || y > now.Year() {
			stats.FutureBuilt++
			continue
		}
		out.Rows = append(out.Rows, row)
	}

	stats.Kept = len(out.Rows)
	return out, stats
}

func hasEssentials(row map[string]string) bool {
	id := row[storage.ColPropertyID]
	if models.IsEmptyValue(id) {
		id = row[storage.ColPropertyID2]
	}
	if models.IsEmptyValue(id) {
		return false
	}
	for _, f := range EssentialFields {
		if models.IsEmptyValue(row[f]) {
			return false
		}
	}
	return true
}

// QualityFiles prints the report for inPath to w and writes the clean
// rows to cleanPath.
func QualityFiles(inPath, cleanPath string, w io.Writer, now time.Time) (CleanStats, error) {
	t, err := storage.ReadTable(inPath)
	if err != nil {
		return CleanStats{}, fmt.Errorf("read %s: %w", inPath, err)
	}

	if err := AnalyzeQuality(t).Write(w); err != nil {
		return CleanStats{}, err
	}

	clean, stats := CleanRows(t, now)
	fmt.Fprintf(w, "\nInput dataset size: %d rows\nClean dataset size: %d rows\nRemoved %d rows due to missing or invalid data\n",
		stats.Input, stats.Kept, stats.Input-stats.Kept)

	if stats.Kept == 0 {
		return stats, storage.ErrNoRecords
	}
	if err := storage.WriteTable(cleanPath, clean); err != nil {
		return stats, fmt.Errorf("write %s: %w", cleanPath, err)
	}
	return stats, nil
}
