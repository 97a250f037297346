package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"

	"bolig_scrooper/identity"
	"bolig_scrooper/models"
)

var errMenuCancelled = errors.New("cancelled")

// RunMode is one choice of the interactive menu. Sample 0 means all rows.
type RunMode struct {
	Name   string
	Sample int
	Debug  bool
}

var runModes = []RunMode{
	{Name: "Test run (5 random properties)", Sample: 5},
	{Name: "Medium run (50 random properties)", Sample: 50},
	{Name: "Full run (all properties)", Sample: 0},
	{Name: "Debug mode (1 property, visible browser)", Sample: 1, Debug: true},
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// chooseRunMode prints the menu to out and reads a choice from in until it
// gets a valid number. "q" or end of input cancels.
func chooseRunMode(in io.Reader, out io.Writer, total int) (RunMode, error) {
	reader := bufio.NewReader(in)

	fmt.Fprintf(out, "\n%d properties in input\n\n", total)
	for i, m := range runModes {
		fmt.Fprintf(out, "%d. %s\n", i+1, m.Name)
	}

	for {
		fmt.Fprintf(out, "\nEnter your choice (1-%d, q to quit): ", len(runModes))
		line, err := reader.ReadString('\n')
		choice := strings.TrimSpace(line)
		if choice == "q" || (err != nil && choice == "") {
			return RunMode{}, errMenuCancelled
		}

		n, convErr := strconv.Atoi(choice)
		if convErr == nil && n >= 1 && n <= len(runModes) {
			return runModes[n-1], nil
		}
		fmt.Fprintln(out, "Invalid choice. Please try again.")
		if err != nil {
			return RunMode{}, errMenuCancelled
		}
	}
}

// partitionLinks splits rows into those with a usable link and the rest.
func partitionLinks(rows []models.ListingRow, baseURL string) (valid, invalid []models.ListingRow) {
	for _, row := range rows {
		if _, err := identity.NormalizeLink(row.Link, baseURL); err != nil {
			invalid = append(invalid, row)
			continue
		}
		valid = append(valid, row)
	}
	return valid, invalid
}

func reportInvalidLinks(invalid []models.ListingRow) {
	if len(invalid) == 0 {
		return
	}
	log.Printf("Found %d properties with invalid links", len(invalid))
	for i, row := range invalid {
		if i == 10 {
			log.Printf("  ... and %d more", len(invalid)-10)
			break
		}
		log.Printf("  - %s: %q", row.PropertyID, row.Link)
	}
}

// sampleRows picks n rows at random and returns them in input order.
// n <= 0 or n >= len(rows) returns rows unchanged.
func sampleRows(rows []models.ListingRow, n int, rng *rand.Rand) []models.ListingRow {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	idx := rng.Perm(len(rows))[:n]
	sort.Ints(idx)
	out := make([]models.ListingRow, n)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// chooseCSV lists the CSV files in dir with their sizes and reads a choice
// from in. 0, "q" or end of input cancels.
func chooseCSV(in io.Reader, out io.Writer, dir string) (string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("no CSV files in %s", dir)
	}
	sort.Strings(paths)

	fmt.Fprintf(out, "\nAvailable CSV files in %s:\n", dir)
	for i, p := range paths {
		size := ""
		if info, err := os.Stat(p); err == nil {
			size = fmt.Sprintf(" (%.1f KB)", float64(info.Size())/1024)
		}
		fmt.Fprintf(out, "%d. %s%s\n", i+1, filepath.Base(p), size)
	}
	fmt.Fprintln(out, "0. Exit")

	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "\nSelect a file (0-%d): ", len(paths))
		line, err := reader.ReadString('\n')
		choice := strings.TrimSpace(line)
		if choice == "0" || choice == "q" || (err != nil && choice == "") {
			return "", errMenuCancelled
		}

		n, convErr := strconv.Atoi(choice)
		if convErr == nil && n >= 1 && n <= len(paths) {
			return paths[n-1], nil
		}
		fmt.Fprintln(out, "Invalid choice. Please try again.")
		if err != nil {
			return "", errMenuCancelled
		}
	}
}
