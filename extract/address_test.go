package extract

import "testing"

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in   string
		want Address
	}{
		{"Vejen 1, 2600 Glostrup", Address{"Vejen 1", "2600", "Glostrup"}},
		{"Bakken 7 2605 Brøndby", Address{"Bakken 7", "2605", "Brøndby"}},
		{"Strandvejen 10, 2900 Hellerup, Gentofte", Address{"Strandvejen 10", "2900", "Hellerup, Gentofte"}},
		{"2600 Glostrup", Address{"", "2600", "Glostrup"}},
		{"Søndre Allé 12", Address{"Søndre Allé 12", "", ""}},
		{"Vej", Address{}},
		{"N/A", Address{}},
	}
	for _, c := range cases {
		if got := ParseAddress(c.in); got != c.want {
			t.Errorf("ParseAddress(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}
