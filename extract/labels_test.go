package extract

import "testing"

func TestPageLabels(t *testing.T) {
	table := DefaultRules().PageLabels()
	cases := map[string]string{
		"Boligareal:":        "living_area",
		"BOLIGAREAL":         "living_area",
		"Grundareal":         "plot_area",
		"Antal badeværelser": "bathrooms",
		"Etage":              "floor",
		"Tagtype":            "roof_type",
		"Sagsnr.":            "case_number",
		"Kontantpris":        "price",
		"Vægtet areal":       "weighted_area",
	}
	for label, want := range cases {
		got, ok := table.Lookup(label)
		if !ok || got != want {
			t.Errorf("Lookup(%q) = %q, %v; want %q", label, got, ok, want)
		}
	}

	if _, ok := table.Lookup("Mægler"); ok {
		t.Error("expected no mapping for Mægler")
	}
}

func TestModalLabels(t *testing.T) {
	table := DefaultRules().ModalLabels()
	cases := map[string]string{
		"Antal plan og etage":  "Floor_Count",
		"Seneste ombygningsår": "Last_Remodel_Year",
		"Antal badeværelser":   "Bathrooms",
		"Kælderareal":          "Basement_Size",
		"Ejendomstype":         "Property_Type",
		"Grundareal":           "Lot_Size",
	}
	for label, want := range cases {
		got, ok := table.Lookup(label)
		if !ok || got != want {
			t.Errorf("Lookup(%q) = %q, %v; want %q", label, got, ok, want)
		}
	}
}

func TestLabelTable_WithDoesNotModifyOriginal(t *testing.T) {
	base := NewLabelTable(map[string]string{"pris": "price"})
	extended := base.With(map[string]string{"boligydelse": "owner_cost"})

	if _, ok := base.Lookup("Boligydelse"); ok {
		t.Fatal("base table was modified")
	}
	if got, ok := extended.Lookup("Boligydelse"); !ok || got != "owner_cost" {
		t.Fatalf("expected owner_cost, got %q", got)
	}
	if extended.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", extended.Len())
	}
}

func TestLabelTable_LookupWord(t *testing.T) {
	table := DefaultRules().ModalLabels()

	if _, _, ok := table.LookupWord("Grundskyld"); ok {
		t.Error("Grundskyld should not match a key inside the word")
	}
	key, field, ok := table.LookupWord("Grundareal")
	if !ok || key != "grundareal" || field != "Lot_Size" {
		t.Errorf("LookupWord(Grundareal) = %q, %q, %v", key, field, ok)
	}
	if _, field, ok := table.LookupWord("Samlet areal"); !ok || field != "Living_Area" {
		t.Errorf("LookupWord(Samlet areal) = %q, %v", field, ok)
	}
}

func TestLabelTable_Prefix(t *testing.T) {
	table := DefaultRules().ModalLabels()

	if key, _, ok := table.Prefix("Antal toiletter 2"); !ok || key != "antal toiletter" {
		t.Errorf("Prefix = %q, %v", key, ok)
	}
	if _, _, ok := table.Prefix("Tagrende zink"); ok {
		t.Error("Tagrende should not split on Tag")
	}
	if _, _, ok := table.Prefix("Pris 2 mio."); ok {
		t.Error("unexpected match for unknown label")
	}
}

func TestCleanLabel(t *testing.T) {
	if got := CleanLabel("  Boligareal :: "); got != "boligareal" {
		t.Fatalf("unexpected %q", got)
	}
}
