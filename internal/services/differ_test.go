package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"ledgercheck/internal/core"
	"ledgercheck/internal/sheets"
)

// baselineRows is statementRows before the bake sale was recorded.
func baselineRows() [][]string {
	return [][]string{
		{"Example Society"},
		{"Statement as at 13/01/2026 09:00"},
		{"Date", "Description", "Money In", "Money Out"},
		{"", "Events", "", ""},
		{"Totals for Events", "0.00", "0.00"},
		{"", "", "0.00"},
		{"07/01/2026", "Venue hire", "", "120.00"},
		{"Totals for Socials", "0.00", "120.00"},
		{"", "", "-120.00"},
		{"Totals for Example Society", "0.00", "120.00"},
		{},
		{"", "", "200.00"},
		{"", "", "80.00"},
	}
}

func extractBoth(t *testing.T, newRows, oldRows [][]string) (*core.Ledger, *core.Ledger, sheets.Grid, sheets.Grid) {
	t.Helper()
	extractor := NewTotalsExtractor(DefaultExtractorConfig(), testLogger())
	newGrid := sheets.NewGrid(newRows)
	oldGrid := sheets.NewGrid(oldRows)
	newLedger, err := extractor.Extract(context.Background(), "New Ledger", newGrid)
	if err != nil {
		t.Fatalf("extract new: %v", err)
	}
	oldLedger, err := extractor.Extract(context.Background(), "Old Ledger", oldGrid)
	if err != nil {
		t.Fatalf("extract old: %v", err)
	}
	return newLedger, oldLedger, newGrid, oldGrid
}

func TestDiffIdenticalLedgers(t *testing.T) {
	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, statementRows(), statementRows())

	differ := NewLedgerDiffer(testLogger())
	changes, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if !changes.Unchanged {
		t.Errorf("expected Unchanged")
	}
	if len(changes.NewRows) != 0 || changes.EntryCount() != 0 {
		t.Errorf("unchanged result carries rows/entries: %+v", changes)
	}
}

func TestDiffFindsNewEntry(t *testing.T) {
	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, statementRows(), baselineRows())

	differ := NewLedgerDiffer(testLogger())
	changes, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if changes.Unchanged {
		t.Fatalf("expected changes")
	}
	if changes.OldLedgerTimestamp != "Statement as at 13/01/2026 09:00" {
		t.Errorf("OldLedgerTimestamp = %q", changes.OldLedgerTimestamp)
	}

	// The bake sale row, the two Events totals rows and the grand total
	// row all differ from the baseline.
	if want := []int{4, 5, 6, 10}; !reflect.DeepEqual(changes.NewRows, want) {
		t.Errorf("NewRows = %v, want %v", changes.NewRows, want)
	}

	if changes.EntryCount() != 1 {
		t.Fatalf("EntryCount() = %d, want 1", changes.EntryCount())
	}
	events, ok := changes.CostCode("Events")
	if !ok {
		t.Fatalf("Events change missing")
	}
	entry := events.Entries[0]
	if entry.Date != "05/01/2026" || entry.Description != "Bake sale" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.Amount.IsIncome() || entry.Amount.Signed().Pence != 5000 {
		t.Errorf("entry amount = %v", entry.Amount.Signed())
	}
	if events.ChangeInBalance.Pence != 5000 {
		t.Errorf("Events ChangeInBalance = %v", events.ChangeInBalance)
	}
	if changes.GrandTotal.ChangeInTotalBalance.Pence != 5000 {
		t.Errorf("ChangeInTotalBalance = %v", changes.GrandTotal.ChangeInTotalBalance)
	}

	// The unchanged Venue hire row must not be flagged as new.
	socials, _ := changes.CostCode("Socials")
	if len(socials.Entries) != 0 {
		t.Errorf("Socials entries = %+v", socials.Entries)
	}
}

func TestDiffIgnoresNonDateRows(t *testing.T) {
	newRows := statementRows()
	// A summary line that changed but is not a transaction.
	newRows[3] = []string{"Total Balance - Events", "", "50.00", ""}

	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, newRows, baselineRows())

	differ := NewLedgerDiffer(testLogger())
	changes, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	found := false
	for _, r := range changes.NewRows {
		if r == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("summary row not recorded for highlighting: %v", changes.NewRows)
	}
	if changes.EntryCount() != 1 {
		t.Errorf("EntryCount() = %d, want only the bake sale entry", changes.EntryCount())
	}
}

func TestDiffUnattributableRowIsSkipped(t *testing.T) {
	newRows := statementRows()
	// A new transaction row after the last cost code's totals, before the
	// grand total. No cost code owns it.
	newRows = append(newRows[:10], append([][]string{
		{"09/01/2026", "Mystery payment", "10.00", ""},
	}, newRows[10:]...)...)

	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, newRows, baselineRows())

	differ := NewLedgerDiffer(testLogger())
	changes, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if changes.EntryCount() != 1 {
		t.Errorf("EntryCount() = %d, want 1 (mystery row skipped)", changes.EntryCount())
	}
	warned := false
	for _, w := range changes.Warnings {
		if strings.Contains(w, "Mystery payment") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("no warning for unattributable row: %v", changes.Warnings)
	}
}

func TestDiffAttributionUsesFirstCostCodeBelow(t *testing.T) {
	// A new row above the Events totals row belongs to Events even though
	// Socials' totals row is also below it.
	newRows := statementRows()
	newRows[4] = []string{"06/01/2026", "Raffle", "25.00", ""}

	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, newRows, baselineRows())

	differ := NewLedgerDiffer(testLogger())
	changes, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	events, _ := changes.CostCode("Events")
	if len(events.Entries) != 1 || events.Entries[0].Description != "Raffle" {
		t.Errorf("Events entries = %+v", events.Entries)
	}
	socials, _ := changes.CostCode("Socials")
	if len(socials.Entries) != 0 {
		t.Errorf("Socials entries = %+v", socials.Entries)
	}
}

func TestDiffScanStopsAtGrandTotal(t *testing.T) {
	newRows := statementRows()
	// A date-shaped row below the grand total row must be ignored.
	newRows = append(newRows, []string{"10/01/2026", "Footer note", "1.00", ""})

	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, newRows, baselineRows())

	differ := NewLedgerDiffer(testLogger())
	changes, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	for _, r := range changes.NewRows {
		if r > newLedger.GrandTotal.LastRow {
			t.Errorf("row %d beyond grand total recorded as new", r)
		}
	}
	if changes.EntryCount() != 1 {
		t.Errorf("EntryCount() = %d, want 1", changes.EntryCount())
	}
}

func TestDiffMissingHeaderRow(t *testing.T) {
	newRows := statementRows()
	newRows[2] = []string{"Datum", "Description", "Money In", "Money Out"}

	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, newRows, baselineRows())

	differ := NewLedgerDiffer(testLogger())
	_, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if !errors.Is(err, core.ErrNotALedger) {
		t.Errorf("Diff() error = %v, want ErrNotALedger", err)
	}
}

func TestDiffEntryWithBothAmountsIsFatal(t *testing.T) {
	newRows := statementRows()
	newRows[4] = []string{"05/01/2026", "Bake sale", "50.00", "50.00"}

	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, newRows, baselineRows())

	differ := NewLedgerDiffer(testLogger())
	_, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if !errors.Is(err, core.ErrBothAmounts) {
		t.Errorf("Diff() error = %v, want ErrBothAmounts", err)
	}
}

func TestDiffWhitespaceDiffersMeansNewRow(t *testing.T) {
	newRows := statementRows()
	newRows[7] = []string{"07/01/2026", "Venue hire ", "", "120.00"}

	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, newRows, baselineRows())

	differ := NewLedgerDiffer(testLogger())
	changes, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	socials, _ := changes.CostCode("Socials")
	if len(socials.Entries) != 1 {
		t.Errorf("trailing-space row should be treated as new, entries = %+v", socials.Entries)
	}
}

func TestDiffDuplicateLookingRowIsNotFlagged(t *testing.T) {
	// A second transaction whose cells exactly match an existing row is
	// indistinguishable from the old one and must not be flagged; only the
	// totals rows it moved are.
	newRows := [][]string{
		{"Example Society"},
		{"Statement as at 14/01/2026 09:00"},
		{"Date", "Description", "Money In", "Money Out"},
		{"", "Events", "", ""},
		{"Totals for Events", "0.00", "0.00"},
		{"", "", "0.00"},
		{"07/01/2026", "Venue hire", "", "120.00"},
		{"07/01/2026", "Venue hire", "", "120.00"},
		{"Totals for Socials", "0.00", "240.00"},
		{"", "", "-240.00"},
		{"Totals for Example Society", "0.00", "240.00"},
		{},
		{"", "", "200.00"},
		{"", "", "-40.00"},
	}

	newLedger, oldLedger, newGrid, oldGrid := extractBoth(t, newRows, baselineRows())

	differ := NewLedgerDiffer(testLogger())
	changes, err := differ.Diff(context.Background(), newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if changes.Unchanged {
		t.Fatalf("totals moved, expected changes")
	}
	// Only the three totals rows moved; neither copy of the transaction
	// row may be flagged or turned into an entry.
	if want := []int{8, 9, 10}; !reflect.DeepEqual(changes.NewRows, want) {
		t.Errorf("NewRows = %v, want %v", changes.NewRows, want)
	}
	if changes.EntryCount() != 0 {
		t.Errorf("EntryCount() = %d, want 0", changes.EntryCount())
	}
}
