package main

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bolig_scrooper/models"
)

func TestChooseRunMode(t *testing.T) {
	var out bytes.Buffer
	mode, err := chooseRunMode(strings.NewReader("9\nabc\n2\n"), &out, 120)
	if err != nil {
		t.Fatalf("chooseRunMode failed: %v", err)
	}
	if mode.Sample != 50 || mode.Debug {
		t.Fatalf("unexpected mode %+v", mode)
	}
	if strings.Count(out.String(), "Invalid choice") != 2 {
		t.Fatalf("expected two rejections, got:\n%s", out.String())
	}
}

func TestChooseRunMode_Debug(t *testing.T) {
	mode, err := chooseRunMode(strings.NewReader("4"), &bytes.Buffer{}, 3)
	if err != nil || !mode.Debug || mode.Sample != 1 {
		t.Fatalf("expected debug mode, got %+v (%v)", mode, err)
	}
}

func TestChooseRunMode_Cancel(t *testing.T) {
	for _, input := range []string{"q\n", ""} {
		if _, err := chooseRunMode(strings.NewReader(input), &bytes.Buffer{}, 3); !errors.Is(err, errMenuCancelled) {
			t.Fatalf("input %q: expected cancel, got %v", input, err)
		}
	}
}

func TestPartitionLinks(t *testing.T) {
	rows := []models.ListingRow{
		{PropertyID: "a", Link: "/adresse/a-1"},
		{PropertyID: "b", Link: "nan"},
		{PropertyID: "c", Link: ""},
		{PropertyID: "d", Link: "https://www.boligsiden.dk/adresse/d-2"},
	}
	valid, invalid := partitionLinks(rows, "https://www.boligsiden.dk")
	if len(valid) != 2 || len(invalid) != 2 {
		t.Fatalf("expected 2 valid and 2 invalid, got %d and %d", len(valid), len(invalid))
	}
	if invalid[0].PropertyID != "b" {
		t.Fatalf("unexpected invalid rows %+v", invalid)
	}
}

func TestSampleRows(t *testing.T) {
	var rows []models.ListingRow
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		rows = append(rows, models.ListingRow{PropertyID: id})
	}

	got := sampleRows(rows, 3, rand.New(rand.NewSource(1)))
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].PropertyID >= got[i].PropertyID {
			t.Fatalf("sample must keep input order: %+v", got)
		}
	}

	if all := sampleRows(rows, 0, nil); len(all) != 6 {
		t.Fatalf("expected all rows for n=0")
	}
}

func TestChooseCSV(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"details.csv": strings.Repeat("x", 2048),
		"sales.csv":   "a,b\n",
		"notes.txt":   "skip me",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	got, err := chooseCSV(strings.NewReader("7\n2\n"), &out, dir)
	if err != nil {
		t.Fatalf("chooseCSV failed: %v", err)
	}
	if got != filepath.Join(dir, "sales.csv") {
		t.Fatalf("expected sales.csv, got %s", got)
	}
	for _, want := range []string{"1. details.csv (2.0 KB)", "2. sales.csv", "0. Exit", "Invalid choice"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in menu:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "notes.txt") {
		t.Fatalf("non-CSV file listed:\n%s", out.String())
	}
}

func TestChooseCSV_ExitAndEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := chooseCSV(strings.NewReader("0\n"), &bytes.Buffer{}, dir); err == nil {
		t.Fatal("expected an error for a directory without CSV files")
	}

	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := chooseCSV(strings.NewReader("0\n"), &bytes.Buffer{}, dir); !errors.Is(err, errMenuCancelled) {
		t.Fatalf("expected cancel on 0, got %v", err)
	}
}
