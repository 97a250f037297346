package extract

import (
	"regexp"
	"sort"
	"strings"

	"bolig_scrooper/models"
)

// Sources holds everything extracted for one property. Modal and Listing
// use canonical field names; Structural and Regex use lowercase keys.
type Sources struct {
	Modal      map[string]string
	Structural map[string]string
	Regex      map[string]string
	Listing    map[string]string
}

// MergeStats counts how many fields each tier filled.
type MergeStats struct {
	Modal      int
	Structural int
	Regex      int
	Listing    int
	Address    int
}

func (s MergeStats) Total() int {
	return s.Modal + s.Structural + s.Regex + s.Listing + s.Address
}

var postalOnlyRe = regexp.MustCompile(`^\d{4}$`)

// Merge fills rec from src with precedence modal > structural > regex >
// listing. A field is only written while it is still empty, and values
// that do not normalize for the field's kind are ignored so a lower tier
// can still supply them.
func Merge(rec *models.PropertyRecord, src Sources, rules *Rules) MergeStats {
	var stats MergeStats
	stats.Modal = fill(rec, src.Modal, rules)
	stats.Structural = fill(rec, canonicalize(src.Structural, rules), rules)
	stats.Regex = fill(rec, canonicalize(src.Regex, rules), rules)
	stats.Listing = fill(rec, src.Listing, rules)

	if rec.Has(models.FieldAddress) {
		a := ParseAddress(rec.Get(models.FieldAddress))
		for field, v := range map[string]string{
			models.FieldStreet:     a.Street,
			models.FieldPostalCode: a.PostalCode,
			models.FieldCity:       a.City,
		} {
			if rec.SetIfEmpty(field, v) {
				stats.Address++
			}
		}
	}
	return stats
}

func fill(rec *models.PropertyRecord, values map[string]string, rules *Rules) int {
	n := 0
	for _, field := range sortedKeys(values) {
		if rec.Has(field) {
			continue
		}
		v, ok := NormalizeString(values[field], rules.KindOf(field))
		if !ok {
			continue
		}
		if field == models.FieldPostalCode && !postalOnlyRe.MatchString(v) {
			continue
		}
		rec.Set(field, v)
		n++
	}
	return n
}

// canonicalize maps lowercase extractor keys to record fields. When two
// keys map to the same field, the one spelled like the field wins
// ("living_area" over "area").
func canonicalize(values map[string]string, rules *Rules) map[string]string {
	out := make(map[string]string, len(values))
	exact := make(map[string]bool, len(values))
	for _, key := range sortedKeys(values) {
		field, ok := rules.CanonicalField(key)
		if !ok {
			continue
		}
		isExact := strings.ToLower(field) == key
		if _, seen := out[field]; seen && (exact[field] || !isExact) {
			continue
		}
		if _, ok := NormalizeString(values[key], rules.KindOf(field)); !ok {
			continue
		}
		out[field] = values[key]
		exact[field] = isExact
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
