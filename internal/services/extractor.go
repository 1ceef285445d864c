// Package services holds the check pipeline: totals extraction, ledger
// differencing and the orchestrating check service.
package services

import (
	"context"
	"fmt"
	"strings"

	"ledgercheck/internal/core"
	"ledgercheck/internal/log"
	"ledgercheck/internal/sheets"
)

// ExtractorConfig fixes where the extractor looks for the anchor cells of a
// ledger sheet. The defaults match the layout of the exported statement.
type ExtractorConfig struct {
	// Marker is the prefix of every totals row. Each match but the last
	// names a cost code; the last match is the grand total.
	Marker string

	// NameCell holds the society name.
	NameCell sheets.Cell

	// TimestampCell holds the snapshot's recorded time, as displayed.
	TimestampCell sheets.Cell
}

func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Marker:        "Totals for ",
		NameCell:      sheets.Cell{Row: 0, Col: 0},
		TimestampCell: sheets.Cell{Row: 1, Col: 0},
	}
}

// TotalsExtractor turns a sheet snapshot into a core.Ledger by reading the
// declared totals rows. It never walks individual transaction rows; that is
// the differ's job.
type TotalsExtractor struct {
	cfg    ExtractorConfig
	logger *log.Logger
}

func NewTotalsExtractor(cfg ExtractorConfig, logger *log.Logger) *TotalsExtractor {
	return &TotalsExtractor{
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentExtractor),
	}
}

// Extract builds a Ledger from the grid. The ledger is returned complete or
// not at all: format problems are fatal, while reconciliation mismatches are
// recorded as warnings and extraction carries on.
func (e *TotalsExtractor) Extract(ctx context.Context, sheetID string, grid sheets.Grid) (*core.Ledger, error) {
	if grid.IsEmpty() {
		return nil, fmt.Errorf("sheet %q is empty: %w", sheetID, core.ErrNotALedger)
	}

	matches := grid.FindAll(e.cfg.Marker)
	if len(matches) == 0 {
		return nil, fmt.Errorf("sheet %q has no %q rows: %w", sheetID, e.cfg.Marker, core.ErrNotALedger)
	}

	ledger := core.NewLedger(sheetID)
	ledger.SocietyName = grid.At(e.cfg.NameCell)
	ledger.Timestamp = grid.At(e.cfg.TimestampCell)
	if ledger.SocietyName == "" {
		return nil, fmt.Errorf("sheet %q: society name cell is empty: %w", sheetID, core.ErrNotALedger)
	}
	if ledger.Timestamp == "" {
		return nil, fmt.Errorf("sheet %q: timestamp cell is empty: %w", sheetID, core.ErrNotALedger)
	}

	// Every match but the last is a cost code subtotal.
	for _, m := range matches[:len(matches)-1] {
		cc, err := e.costCode(m, grid)
		if err != nil {
			return nil, err
		}
		if !cc.Reconciles() {
			cc.BalanceMismatch = true
			ledger.AddWarning("cost code %q: balance %s does not equal in %s minus out %s",
				cc.Name, cc.Balance, cc.MoneyIn, cc.MoneyOut)
			e.logger.WarnContext(ctx, "Cost code does not reconcile",
				log.FieldOperation, log.OpExtract,
				log.FieldSheet, sheetID,
				log.FieldCostCode, cc.Name)
		}
		if err := ledger.AddCostCode(cc); err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", sheetID, m.Row, err)
		}
	}

	last := matches[len(matches)-1]
	gt, err := e.grandTotal(last, grid)
	if err != nil {
		return nil, err
	}
	if !gt.Reconciles() {
		ledger.AddWarning("grand total: balance %s does not equal brought forward %s plus in %s minus out %s",
			gt.TotalBalance, gt.BalanceBroughtForward, gt.TotalIn, gt.TotalOut)
		e.logger.WarnContext(ctx, "Grand total does not reconcile",
			log.FieldOperation, log.OpExtract,
			log.FieldSheet, sheetID)
	}
	ledger.GrandTotal = gt

	e.logger.InfoContext(ctx, "Extracted ledger",
		log.FieldOperation, log.OpExtract,
		log.FieldSheet, sheetID,
		log.FieldSociety, ledger.SocietyName,
		"cost_codes", len(ledger.CostCodes()))
	return ledger, nil
}

func (e *TotalsExtractor) costCode(m sheets.Match, grid sheets.Grid) (*core.CostCode, error) {
	moneyIn, err := core.ParseMoneyCell(grid.Offset(m.Cell, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("row %d: money in: %w", m.Row, err)
	}
	moneyOut, err := core.ParseMoneyCell(grid.Offset(m.Cell, 0, 2))
	if err != nil {
		return nil, fmt.Errorf("row %d: money out: %w", m.Row, err)
	}
	balance, err := core.ParseMoneyCell(grid.Offset(m.Cell, 1, 2))
	if err != nil {
		return nil, fmt.Errorf("row %d: balance: %w", m.Row, err)
	}
	return &core.CostCode{
		Name:     strings.TrimPrefix(m.Text, e.cfg.Marker),
		MoneyIn:  moneyIn,
		MoneyOut: moneyOut,
		Balance:  balance,
		LastRow:  m.Row,
	}, nil
}

func (e *TotalsExtractor) grandTotal(m sheets.Match, grid sheets.Grid) (core.GrandTotal, error) {
	totalIn, err := core.ParseMoneyCell(grid.Offset(m.Cell, 0, 1))
	if err != nil {
		return core.GrandTotal{}, fmt.Errorf("row %d: total in: %w", m.Row, err)
	}
	totalOut, err := core.ParseMoneyCell(grid.Offset(m.Cell, 0, 2))
	if err != nil {
		return core.GrandTotal{}, fmt.Errorf("row %d: total out: %w", m.Row, err)
	}
	broughtForward, err := core.ParseMoneyCell(grid.Offset(m.Cell, 2, 2))
	if err != nil {
		return core.GrandTotal{}, fmt.Errorf("row %d: balance brought forward: %w", m.Row, err)
	}
	closing, err := core.ParseMoneyCell(grid.Offset(m.Cell, 3, 2))
	if err != nil {
		return core.GrandTotal{}, fmt.Errorf("row %d: total balance: %w", m.Row, err)
	}
	return core.GrandTotal{
		TotalIn:               totalIn,
		TotalOut:              totalOut,
		BalanceBroughtForward: broughtForward,
		TotalBalance:          closing,
		LastRow:               m.Row,
	}, nil
}
