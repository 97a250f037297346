package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"bolig_scrooper/models"
)

var ErrInvalidLink = errors.New("invalid link")

var (
	danishFold = strings.NewReplacer(
		"æ", "ae", "ø", "oe", "å", "aa",
		"é", "e", "ü", "u", "ö", "oe", "ä", "ae",
	)
	addressReplacements = []struct{ from, to string }{
		{"sal", ""},
		{"stuen", "st"},
		{"kaelder", "kl"},
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// NormalizeLink turns a listing href into an absolute URL on baseURL.
// Relative links with or without a leading slash are accepted.
func NormalizeLink(href, baseURL string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.EqualFold(href, "nan") {
		return "", fmt.Errorf("%w: empty", ErrInvalidLink)
	}

	if !strings.HasPrefix(href, "http") {
		if !strings.HasPrefix(href, "/") {
			href = "/" + href
		}
		href = strings.TrimRight(baseURL, "/") + href
	}

	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLink, href)
	}
	return u.String(), nil
}

// PropertyIDFromURL returns the last non-empty path segment of link.
func PropertyIDFromURL(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// NormalizeAddress lowercases a Danish address, folds æ/ø/å to ASCII and
// drops punctuation so the same address compares equal across sources.
func NormalizeAddress(addr string) string {
	addr = norm.NFC.String(addr)
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = danishFold.Replace(addr)
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")

	tokens := strings.Fields(addr)
	for i, tok := range tokens {
		for _, r := range addressReplacements {
			if tok == r.from {
				tokens[i] = r.to
				break
			}
		}
	}
	addr = strings.Join(tokens, " ")
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}

// Fingerprint identifies a physical property independently of the site id.
func Fingerprint(rec *models.PropertyRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s",
		NormalizeAddress(firstNonEmpty(rec, models.FieldStreet, models.FieldAddress)),
		rec.Get(models.FieldPostalCode),
		rec.Get(models.FieldLivingArea),
		rec.Get(models.FieldBuiltYear),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

func firstNonEmpty(rec *models.PropertyRecord, fields ...string) string {
	for _, f := range fields {
		if rec.Has(f) {
			return rec.Get(f)
		}
	}
	return ""
}
