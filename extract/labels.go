package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type labelEntry struct {
	key       string
	canonical string
}

// LabelTable maps source labels to canonical keys by case-insensitive
// substring match. Longer keys are tried first so "grundareal" wins over
// "areal". A LabelTable is never modified after construction.
type LabelTable struct {
	entries []labelEntry
}

func NewLabelTable(m map[string]string) LabelTable {
	entries := make([]labelEntry, 0, len(m))
	for k, v := range m {
		key := foldLabel(k)
		if key == "" {
			continue
		}
		entries = append(entries, labelEntry{key: key, canonical: v})
	}
	sortEntries(entries)
	return LabelTable{entries: entries}
}

// With returns a new table with extra mappings added; extra wins on
// duplicate keys.
func (t LabelTable) With(extra map[string]string) LabelTable {
	if len(extra) == 0 {
		return t
	}
	merged := make(map[string]string, len(t.entries)+len(extra))
	for _, e := range t.entries {
		merged[e.key] = e.canonical
	}
	for k, v := range extra {
		merged[foldLabel(k)] = v
	}
	return NewLabelTable(merged)
}

// Lookup returns the canonical key for label.
func (t LabelTable) Lookup(label string) (string, bool) {
	folded := foldLabel(label)
	if folded == "" {
		return "", false
	}
	for _, e := range t.entries {
		if strings.Contains(folded, e.key) {
			return e.canonical, true
		}
	}
	return "", false
}

// LookupWord is Lookup restricted to whole words: a key only matches when
// it is not part of a longer word, so "grund" does not match
// "grundskyld". The matched key is returned with its canonical value.
func (t LabelTable) LookupWord(label string) (key, canonical string, ok bool) {
	folded := foldLabel(label)
	if folded == "" {
		return "", "", false
	}
	for _, e := range t.entries {
		if containsWord(folded, e.key) {
			return e.key, e.canonical, true
		}
	}
	return "", "", false
}

// Prefix returns the longest key that starts text as a whole word. It is
// used to split rows that have no explicit label cell.
func (t LabelTable) Prefix(text string) (key, canonical string, ok bool) {
	folded := foldLabel(text)
	for _, e := range t.entries {
		if strings.HasPrefix(folded, e.key) && wordEnd(folded, len(e.key)) {
			return e.key, e.canonical, true
		}
	}
	return "", "", false
}

func (t LabelTable) Len() int {
	return len(t.entries)
}

// CleanLabel normalizes a scraped label: NFC, single spaces, lowercase,
// trailing colons removed.
func CleanLabel(s string) string {
	return foldLabel(s)
}

func foldLabel(s string) string {
	s = norm.NFC.String(s)
	s = cleanText(s)
	s = strings.ToLower(s)
	s = strings.TrimRight(s, ": ")
	return s
}

func containsWord(s, word string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		i += from
		if wordStart(s, i) && wordEnd(s, i+len(word)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		from = i + size
	}
	return false
}

func wordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordEnd(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func sortEntries(entries []labelEntry) {
	sort.Slice(entries, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(entries[i].key), utf8.RuneCountInString(entries[j].key)
		if li != lj {
			return li > lj
		}
		return entries[i].key < entries[j].key
	})
}
