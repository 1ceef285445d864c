package services

import (
	"context"
	"fmt"

	"ledgercheck/internal/core"
	"ledgercheck/internal/log"
	"ledgercheck/internal/sheets"
)

const (
	// headerSentinel is the first cell of the column header row. Rows above
	// it are title and summary material that never carries transactions.
	headerSentinel = "Date"

	// compareWidth is how many leading columns identify a row: date,
	// description, money in, money out. Values are compared exactly,
	// whitespace included.
	compareWidth = 4

	columnMoneyIn  = 2
	columnMoneyOut = 3
)

// LedgerDiffer compares a fresh ledger snapshot against the baseline and
// produces a Changes value. The extracted ledgers are never mutated.
type LedgerDiffer struct {
	logger *log.Logger
}

func NewLedgerDiffer(logger *log.Logger) *LedgerDiffer {
	return &LedgerDiffer{logger: logger.WithComponent(log.ComponentDiffer)}
}

// Diff finds the rows of newGrid that are absent from oldGrid and attributes
// the date-shaped ones to cost codes as entries. When the two grand totals
// agree the row comparison is skipped entirely and the result reports
// Unchanged.
func (d *LedgerDiffer) Diff(ctx context.Context, newLedger, oldLedger *core.Ledger, newGrid, oldGrid sheets.Grid) (*core.Changes, error) {
	changes := core.NewChanges(newLedger.SocietyName, newLedger.SheetID)
	changes.OldLedgerTimestamp = oldLedger.Timestamp
	changes.Warnings = append(changes.Warnings, newLedger.Warnings...)
	changes.GrandTotal = core.GrandTotalChange{
		TotalIn:               newLedger.GrandTotal.TotalIn,
		TotalOut:              newLedger.GrandTotal.TotalOut,
		BalanceBroughtForward: newLedger.GrandTotal.BalanceBroughtForward,
		TotalBalance:          newLedger.GrandTotal.TotalBalance,
	}

	if newLedger.GrandTotal.Equal(oldLedger.GrandTotal) {
		changes.Unchanged = true
		d.logger.InfoContext(ctx, "Grand totals agree, skipping row comparison",
			log.FieldOperation, log.OpDiff,
			log.FieldSheet, newLedger.SheetID)
		return changes, nil
	}

	for _, cc := range newLedger.CostCodes() {
		change := &core.CostCodeChange{
			Name:     cc.Name,
			MoneyIn:  cc.MoneyIn,
			MoneyOut: cc.MoneyOut,
			Balance:  cc.Balance,
			Entries:  []core.Entry{},
		}
		if err := changes.AddCostCode(change); err != nil {
			return nil, err
		}
	}

	header := d.headerRow(newGrid, newLedger.GrandTotal.LastRow)
	if header < 0 {
		return nil, fmt.Errorf("sheet %q: no %q header row found: %w",
			newLedger.SheetID, headerSentinel, core.ErrNotALedger)
	}

	// Membership is against every row of the old sheet, not just its data
	// region: a row is only "new" if nothing anywhere in the baseline
	// matches it exactly.
	oldRows := make(map[string]struct{}, oldGrid.NumRows())
	for r := 0; r < oldGrid.NumRows(); r++ {
		oldRows[oldGrid.RowKey(r, compareWidth)] = struct{}{}
	}

	for r := header + 1; r <= newLedger.GrandTotal.LastRow && r < newGrid.NumRows(); r++ {
		if d.rowEmpty(newGrid, r) {
			continue
		}
		if _, ok := oldRows[newGrid.RowKey(r, compareWidth)]; ok {
			continue
		}
		changes.NewRows = append(changes.NewRows, r)

		date := newGrid.Value(r, 0)
		if !core.IsDateShaped(date) {
			continue
		}
		entry, err := d.entry(newGrid, r, date)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", newLedger.SheetID, err)
		}

		name, ok := d.attribute(newLedger, r)
		if !ok {
			changes.Warnings = append(changes.Warnings,
				fmt.Sprintf("row %d (%q) is below every cost code's totals row", r, entry.Description))
			d.logger.WarnContext(ctx, "New row could not be attributed to a cost code",
				log.FieldOperation, log.OpDiff,
				log.FieldSheet, newLedger.SheetID,
				log.FieldRow, r)
			continue
		}
		if err := changes.AddEntry(name, entry); err != nil {
			return nil, err
		}
	}

	d.logger.InfoContext(ctx, "Compared ledgers",
		log.FieldOperation, log.OpDiff,
		log.FieldSheet, newLedger.SheetID,
		log.FieldEntries, changes.EntryCount(),
		"new_rows", len(changes.NewRows))
	return changes, nil
}

// headerRow finds the column header row above the grand total.
func (d *LedgerDiffer) headerRow(grid sheets.Grid, bound int) int {
	for r := 0; r <= bound && r < grid.NumRows(); r++ {
		if grid.Value(r, 0) == headerSentinel {
			return r
		}
	}
	return -1
}

func (d *LedgerDiffer) rowEmpty(grid sheets.Grid, row int) bool {
	for _, v := range grid.Row(row, compareWidth) {
		if v != "" {
			return false
		}
	}
	return true
}

func (d *LedgerDiffer) entry(grid sheets.Grid, row int, date string) (core.Entry, error) {
	moneyIn, err := core.ParseMoneyCell(grid.Value(row, columnMoneyIn))
	if err != nil {
		return core.Entry{}, fmt.Errorf("row %d: money in: %w", row, err)
	}
	moneyOut, err := core.ParseMoneyCell(grid.Value(row, columnMoneyOut))
	if err != nil {
		return core.Entry{}, fmt.Errorf("row %d: money out: %w", row, err)
	}
	entry, err := core.NewEntry(date, grid.Value(row, 1), moneyIn, moneyOut)
	if err != nil {
		return core.Entry{}, fmt.Errorf("row %d: %w", row, err)
	}
	return entry, nil
}

// attribute finds the owning cost code for a data row: the first cost code,
// in sheet order, whose totals row sits below it.
func (d *LedgerDiffer) attribute(ledger *core.Ledger, row int) (string, bool) {
	for _, cc := range ledger.CostCodes() {
		if cc.LastRow > row {
			return cc.Name, true
		}
	}
	return "", false
}
