package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Address is a Danish street address split into its parts. Empty parts
// were not found.
type Address struct {
	Street     string
	PostalCode string
	City       string
}

var (
	fullAddressRe = regexp.MustCompile(`^(.*?),?\s+(\d{4})\s+([^,]+)(?:,\s*(.+))?$`)
	postalCodeRe  = regexp.MustCompile(`\d{4}`)
)

// ParseAddress splits "Street 1, 2600 City" into parts. Extra text after
// the city ("2600 Glostrup, Hovedstaden") is kept on the city.
func ParseAddress(text string) Address {
	text = cleanText(text)
	var a Address
	if text == "" || strings.EqualFold(text, "N/A") {
		return a
	}

	if m := fullAddressRe.FindStringSubmatch(text); m != nil {
		a.Street = strings.TrimSpace(m[1])
		a.PostalCode = m[2]
		a.City = strings.TrimSpace(m[3])
		if m[4] != "" {
			a.City = a.City + ", " + strings.TrimSpace(m[4])
		}
		return a
	}

	if loc := postalCodeRe.FindStringIndex(text); loc != nil {
		a.PostalCode = text[loc[0]:loc[1]]
		a.Street = strings.TrimRight(strings.TrimSpace(text[:loc[0]]), ",")
		a.City = strings.TrimLeft(strings.TrimSpace(text[loc[1]:]), ", ")
		return a
	}

	if utf8.RuneCountInString(text) > 5 {
		a.Street = text
	}
	return a
}
