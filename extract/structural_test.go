package extract

import (
	"testing"

	"github.com/PuerkitoBio/goquery"

	"bolig_scrooper/models"
)

func TestStructural_PropertyPage(t *testing.T) {
	doc := loadDocument(t, "property_page.html")
	got := Structural(doc, DefaultRules())

	want := map[string]string{
		"living_area":   "145 m²",
		"plot_area":     "812 m²",
		"build_year":    "1972",
		"bathrooms":     "2",
		"owner_cost":    "3.250 kr./md",
		"case_number":   "A-1234",
		"rooms":         "5",
		"energy_label":  "C",
		"price":         "2.495.000 kr.",
		"property_type": "Villa",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestStructural_NoMatchesIsEmpty(t *testing.T) {
	doc := docFromString(t, "<html><body><p>Intet her</p></body></html>")
	got := Structural(doc, DefaultRules())
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestStructural_KeepsUnmappedLabels(t *testing.T) {
	doc := docFromString(t, `<section><table><tr><th>Mægler:</th><td>Home Glostrup</td></tr></table></section>`)
	got := Structural(doc, DefaultRules())
	if got["mægler"] != "Home Glostrup" {
		t.Fatalf("expected unmapped label kept lowercase, got %v", got)
	}
}

func TestStructural_PricePerSquareMetreIsNotPrice(t *testing.T) {
	doc := docFromString(t, `<section><table>
		<tr><th>Pris pr. m²</th><td>25.000 kr.</td></tr>
		<tr><th>Kontantpris</th><td>2.495.000 kr.</td></tr>
	</table></section>`)
	got := Structural(doc, DefaultRules())
	if got["price"] != "2.495.000 kr." {
		t.Fatalf("price = %q, want 2.495.000 kr.", got["price"])
	}
	if got["price_per_m2"] != "25.000 kr." {
		t.Fatalf("price_per_m2 = %q", got["price_per_m2"])
	}

	var rec models.PropertyRecord
	Merge(&rec, Sources{Structural: got}, DefaultRules())
	if rec.Get(models.FieldPrice) != "2495000" {
		t.Fatalf("merged price = %q", rec.Get(models.FieldPrice))
	}
}

func TestStructural_EnergyImageIgnoresDanishWords(t *testing.T) {
	doc := docFromString(t, `<img src="/img/energi-ikon.png" alt="Energi dårlig">`)
	if got := energyFromImage(doc); got != nil {
		t.Fatalf("expected no label, got %v", got)
	}
	doc = docFromString(t, `<img src="/img/energimaerke-b.svg" alt="energimærke">`)
	if got := energyFromImage(doc); got["energy_label"] != "B" {
		t.Fatalf("expected B, got %v", got)
	}
}

func TestStructural_DefinitionList(t *testing.T) {
	doc := docFromString(t, `<dl><dt>Opført</dt><dd>1964</dd><dt>Varme</dt><dd>Fjernvarme</dd></dl>`)
	got := Structural(doc, DefaultRules())
	if got["build_year"] != "1964" || got["heating_type"] != "Fjernvarme" {
		t.Fatalf("unexpected %v", got)
	}
}

func TestStructural_FirstValueWins(t *testing.T) {
	doc := docFromString(t, `<section><table>
		<tr><th>Boligareal</th><td>120 m²</td></tr>
		<tr><th>Boligareal</th><td>999 m²</td></tr>
	</table></section>`)
	got := Structural(doc, DefaultRules())
	if got["living_area"] != "120 m²" {
		t.Fatalf("expected first value, got %q", got["living_area"])
	}
}

func TestStructural_EnergyLabelMissing(t *testing.T) {
	doc := docFromString(t, `<div class="w-10 h-10"><svg><title>Intet energimærke</title></svg></div>`)
	got := Structural(doc, DefaultRules())
	if got["energy_label"] != "N/A" {
		t.Fatalf("expected N/A, got %q", got["energy_label"])
	}
}

func TestFirstSuccessAndFillMissing(t *testing.T) {
	empty := func(*goquery.Document) map[string]string { return nil }
	a := func(*goquery.Document) map[string]string { return map[string]string{"x": "1"} }
	b := func(*goquery.Document) map[string]string { return map[string]string{"x": "2", "y": "3"} }

	if got := FirstSuccess(empty, b, a)(nil); got["x"] != "2" {
		t.Fatalf("FirstSuccess picked %v", got)
	}
	got := FillMissing(a, b)(nil)
	if got["x"] != "1" || got["y"] != "3" {
		t.Fatalf("FillMissing produced %v", got)
	}
}
