package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"ledgercheck/internal/core"
	"ledgercheck/internal/log"
	"ledgercheck/internal/sheets"
)

func testLogger() *log.Logger {
	return log.New(log.Config{
		Handler: slog.NewTextHandler(io.Discard, nil),
	})
}

// statementRows is a small but complete ledger sheet: two cost codes and a
// grand total, laid out the way the exported statement lays them out.
func statementRows() [][]string {
	return [][]string{
		{"Example Society"},
		{"Statement as at 14/01/2026 10:30"},
		{"Date", "Description", "Money In", "Money Out"},
		{"", "Events", "", ""},
		{"05/01/2026", "Bake sale", "50.00", ""},
		{"Totals for Events", "50.00", "0.00"},
		{"", "", "50.00"},
		{"07/01/2026", "Venue hire", "", "120.00"},
		{"Totals for Socials", "0.00", "120.00"},
		{"", "", "-120.00"},
		{"Totals for Example Society", "50.00", "120.00"},
		{},
		{"", "", "200.00"},
		{"", "", "130.00"},
	}
}

func TestExtract(t *testing.T) {
	extractor := NewTotalsExtractor(DefaultExtractorConfig(), testLogger())
	ledger, err := extractor.Extract(context.Background(), "New Ledger", sheets.NewGrid(statementRows()))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if ledger.SocietyName != "Example Society" {
		t.Errorf("SocietyName = %q", ledger.SocietyName)
	}
	if ledger.Timestamp != "Statement as at 14/01/2026 10:30" {
		t.Errorf("Timestamp = %q", ledger.Timestamp)
	}

	codes := ledger.CostCodes()
	if len(codes) != 2 {
		t.Fatalf("len(CostCodes()) = %d, want 2", len(codes))
	}
	events := codes[0]
	if events.Name != "Events" || events.LastRow != 5 {
		t.Errorf("first cost code = %q at row %d, want Events at 5", events.Name, events.LastRow)
	}
	if events.MoneyIn.Pence != 5000 || events.MoneyOut.Pence != 0 || events.Balance.Pence != 5000 {
		t.Errorf("Events totals = in %v out %v balance %v", events.MoneyIn, events.MoneyOut, events.Balance)
	}
	if events.BalanceMismatch {
		t.Errorf("Events flagged as mismatched")
	}
	socials := codes[1]
	if socials.Name != "Socials" || socials.Balance.Pence != -12000 {
		t.Errorf("Socials = %q balance %v", socials.Name, socials.Balance)
	}

	gt := ledger.GrandTotal
	if gt.TotalIn.Pence != 5000 || gt.TotalOut.Pence != 12000 {
		t.Errorf("grand total in/out = %v/%v", gt.TotalIn, gt.TotalOut)
	}
	if gt.BalanceBroughtForward.Pence != 20000 || gt.TotalBalance.Pence != 13000 {
		t.Errorf("grand total bbf/balance = %v/%v", gt.BalanceBroughtForward, gt.TotalBalance)
	}
	if gt.LastRow != 10 {
		t.Errorf("grand total LastRow = %d, want 10", gt.LastRow)
	}
	if len(ledger.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", ledger.Warnings)
	}
}

func TestExtractNotALedger(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{name: "empty grid", rows: nil},
		{
			name: "no totals rows",
			rows: [][]string{
				{"Example Society"},
				{"Statement as at 14/01/2026 10:30"},
				{"Date", "Description", "Money In", "Money Out"},
			},
		},
		{
			name: "missing society name",
			rows: func() [][]string {
				rows := statementRows()
				rows[0] = []string{""}
				return rows
			}(),
		},
		{
			name: "missing timestamp",
			rows: func() [][]string {
				rows := statementRows()
				rows[1] = []string{""}
				return rows
			}(),
		},
	}

	extractor := NewTotalsExtractor(DefaultExtractorConfig(), testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractor.Extract(context.Background(), "New Ledger", sheets.NewGrid(tt.rows))
			if !errors.Is(err, core.ErrNotALedger) {
				t.Errorf("Extract() error = %v, want ErrNotALedger", err)
			}
		})
	}
}

func TestExtractBalanceMismatchIsWarning(t *testing.T) {
	rows := statementRows()
	rows[6] = []string{"", "", "49.00"} // Events balance off by a pound

	extractor := NewTotalsExtractor(DefaultExtractorConfig(), testLogger())
	ledger, err := extractor.Extract(context.Background(), "New Ledger", sheets.NewGrid(rows))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	events, ok := ledger.CostCode("Events")
	if !ok {
		t.Fatalf("Events cost code missing")
	}
	if !events.BalanceMismatch {
		t.Errorf("expected BalanceMismatch flag")
	}
	if len(ledger.Warnings) != 1 || !strings.Contains(ledger.Warnings[0], "Events") {
		t.Errorf("Warnings = %v", ledger.Warnings)
	}
}

func TestExtractGrandTotalMismatchIsWarning(t *testing.T) {
	rows := statementRows()
	rows[13] = []string{"", "", "999.00"}

	extractor := NewTotalsExtractor(DefaultExtractorConfig(), testLogger())
	ledger, err := extractor.Extract(context.Background(), "New Ledger", sheets.NewGrid(rows))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(ledger.Warnings) != 1 || !strings.Contains(ledger.Warnings[0], "grand total") {
		t.Errorf("Warnings = %v", ledger.Warnings)
	}
}

func TestExtractDuplicateCostCode(t *testing.T) {
	rows := statementRows()
	rows[8] = []string{"Totals for Events", "0.00", "120.00"}

	extractor := NewTotalsExtractor(DefaultExtractorConfig(), testLogger())
	_, err := extractor.Extract(context.Background(), "New Ledger", sheets.NewGrid(rows))
	if !errors.Is(err, core.ErrDuplicateCostCode) {
		t.Errorf("Extract() error = %v, want ErrDuplicateCostCode", err)
	}
}

func TestExtractBadMoneyCellIsFatal(t *testing.T) {
	rows := statementRows()
	rows[5] = []string{"Totals for Events", "fifty", "0.00"}

	extractor := NewTotalsExtractor(DefaultExtractorConfig(), testLogger())
	_, err := extractor.Extract(context.Background(), "New Ledger", sheets.NewGrid(rows))
	if !errors.Is(err, core.ErrInvalidMoney) {
		t.Errorf("Extract() error = %v, want ErrInvalidMoney", err)
	}
}
