package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind selects how a raw string is turned into a value.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindArea
	KindPrice
	KindYear
	KindEnergy
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindArea:
		return "area"
	case KindPrice:
		return "price"
	case KindYear:
		return "year"
	case KindEnergy:
		return "energy"
	default:
		return "text"
	}
}

const minYear = 1500

var (
	numberRunRe  = regexp.MustCompile(`\d[\d.,]*`)
	thousandsRe  = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	priceRunRe   = regexp.MustCompile(`\d{1,3}(?:[.,\x{a0} ]\d{3})+(?:,\d{1,2})?|\d+(?:[.,]\d{1,2})?`)
	priceFracRe  = regexp.MustCompile(`[.,]\d{1,2}$`)
	nonDigitRe   = regexp.MustCompile(`\D`)
	yearRunRe    = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)
	energyRe     = regexp.MustCompile(`(?:^|[^\p{L}\d])([A-G])(\d{4}|\+{1,2})?(?:[^\p{L}\d+]|$)`)
	millionRe    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*mio\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize parses value according to kind. It returns false when no
// usable value can be recovered. KindText and KindEnergy never produce a
// number; use NormalizeString for those.
func Normalize(value string, kind Kind) (float64, bool) {
	value = cleanText(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return 0, false
	}

	switch kind {
	case KindNumber, KindArea:
		return parseNumber(value)
	case KindPrice:
		return parsePrice(value)
	case KindYear:
		return parseYear(value, time.Now().Year())
	}
	return 0, false
}

// NormalizeString returns the canonical string form of value for kind.
func NormalizeString(value string, kind Kind) (string, bool) {
	switch kind {
	case KindText:
		v := cleanText(value)
		if v == "" || strings.EqualFold(v, "N/A") {
			return "", false
		}
		return v, true
	case KindEnergy:
		return parseEnergy(value)
	}

	f, ok := Normalize(value, kind)
	if !ok {
		return "", false
	}
	return FormatValue(f), true
}

// FormatValue renders integers without a fraction and everything else in
// the shortest exact form.
func FormatValue(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func parseNumber(s string) (float64, bool) {
	run := numberRunRe.FindString(s)
	run = strings.TrimRight(run, ".,")
	if run == "" {
		return 0, false
	}

	switch {
	case strings.Contains(run, ".") && strings.Contains(run, ","):
		run = strings.ReplaceAll(run, ".", "")
		run = strings.ReplaceAll(run, ",", ".")
	case strings.Contains(run, ","):
		if strings.Count(run, ",") > 1 {
			run = strings.ReplaceAll(run, ",", "")
		} else {
			run = strings.ReplaceAll(run, ",", ".")
		}
	case thousandsRe.MatchString(run):
		run = strings.ReplaceAll(run, ".", "")
	case strings.Count(run, ".") > 1:
		return 0, false
	}

	f, err := strconv.ParseFloat(run, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

func parsePrice(s string) (float64, bool) {
	// "2,5 mio. kr." is written in millions with a decimal comma.
	if m := millionRe.FindStringSubmatch(s); m != nil {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil || f <= 0 {
			return 0, false
		}
		return math.Round(f * 1e6), true
	}

	run := priceRunRe.FindString(s)
	if run == "" {
		return 0, false
	}
	// "1.250.000,00" and "3.500,5" carry a fraction after the last separator.
	if frac := priceFracRe.FindString(run); frac != "" && !thousandsRe.MatchString(run) {
		// A point decimal with no comma grouping ("12.5") is not a Danish amount.
		if frac[0] == '.' && !strings.Contains(run, ",") {
			return 0, false
		}
		run = strings.TrimSuffix(run, frac)
	}
	digits := nonDigitRe.ReplaceAllString(run, "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

func parseYear(s string, currentYear int) (float64, bool) {
	m := yearRunRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil || y < minYear || y > currentYear {
		return 0, false
	}
	return float64(y), true
}

func parseEnergy(s string) (string, bool) {
	s = cleanText(s)
	if s == "" || strings.Contains(strings.ToLower(s), "intet") {
		return "", false
	}
	m := energyRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]) + m[2], true
}
