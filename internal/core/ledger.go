package core

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrBothAmounts       = errors.New("entry has both money in and money out")
	ErrNoAmount          = errors.New("entry has neither money in nor money out")
	ErrDuplicateCostCode = errors.New("duplicate cost code name")

	// ErrNotALedger marks input that does not look like a ledger sheet at
	// all: an empty grid, or one without any totals rows.
	ErrNotALedger = errors.New("sheet does not look like a ledger")
)

// dateShape matches dates as displayed in the sheet (DD/MM/YYYY). The digits
// are deliberately not validated as a real calendar date: the shape alone is
// what separates transaction rows from subtotal rows.
var dateShape = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// IsDateShaped reports whether s looks like a transaction date cell.
func IsDateShaped(s string) bool {
	return dateShape.MatchString(s)
}

type amountKind uint8

const (
	incomeKind amountKind = iota + 1
	expenditureKind
)

// Amount is a transaction amount tagged as income or expenditure, so the
// "both set" and "neither set" states of the source sheet's two money
// columns cannot be represented.
type Amount struct {
	kind  amountKind
	money Money
}

// Income builds an income amount.
func Income(m Money) Amount {
	return Amount{kind: incomeKind, money: m}
}

// Expenditure builds an expenditure amount.
func Expenditure(m Money) Amount {
	return Amount{kind: expenditureKind, money: m}
}

func (a Amount) IsIncome() bool { return a.kind == incomeKind }

// Signed returns the amount with income positive and expenditure negative.
func (a Amount) Signed() Money {
	if a.kind == expenditureKind {
		return a.money.Neg()
	}
	return a.money
}

// Entry is a single transaction line attributed to one cost code.
// Immutable after construction.
type Entry struct {
	Date        string
	Description string
	Amount      Amount
}

// NewEntry builds an Entry from the sheet's mutually exclusive money-in and
// money-out columns. Exactly one must be non-zero; anything else means the
// caller has miscomputed its column mapping and is a hard error.
func NewEntry(date, description string, moneyIn, moneyOut Money) (Entry, error) {
	switch {
	case !moneyIn.IsZero() && !moneyOut.IsZero():
		return Entry{}, fmt.Errorf("entry %q on %s: %w", description, date, ErrBothAmounts)
	case moneyIn.IsZero() && moneyOut.IsZero():
		return Entry{}, fmt.Errorf("entry %q on %s: %w", description, date, ErrNoAmount)
	case !moneyIn.IsZero():
		return Entry{Date: date, Description: description, Amount: Income(moneyIn)}, nil
	default:
		return Entry{Date: date, Description: description, Amount: Expenditure(moneyOut)}, nil
	}
}

// CostCode is one aggregation bucket of the ledger: the declared totals from
// its "Totals for" row plus any entries the differ attributes to it.
type CostCode struct {
	Name     string
	MoneyIn  Money
	MoneyOut Money
	Balance  Money

	// LastRow is the zero-based row index of this cost code's totals row.
	// Data rows belong to the first cost code whose LastRow exceeds their
	// own index.
	LastRow int

	// BalanceMismatch records a soft invariant violation
	// (Balance != MoneyIn - MoneyOut). Extraction carries on regardless.
	BalanceMismatch bool
}

// Reconciles reports whether the declared totals are internally consistent.
func (c *CostCode) Reconciles() bool {
	return c.Balance.Equal(c.MoneyIn.Sub(c.MoneyOut))
}

// GrandTotal is the ledger-wide summary. Set once during extraction.
type GrandTotal struct {
	TotalIn               Money
	TotalOut              Money
	BalanceBroughtForward Money
	TotalBalance          Money
	LastRow               int
}

// Reconciles reports whether the closing balance matches the other totals.
func (g GrandTotal) Reconciles() bool {
	return g.TotalBalance.Equal(g.BalanceBroughtForward.Add(g.TotalIn).Sub(g.TotalOut))
}

// Equal compares the independently stated totals: total in, total out and
// balance brought forward. The closing balance is derived and not compared.
func (g GrandTotal) Equal(o GrandTotal) bool {
	return g.TotalIn.Equal(o.TotalIn) &&
		g.TotalOut.Equal(o.TotalOut) &&
		g.BalanceBroughtForward.Equal(o.BalanceBroughtForward)
}

// Ledger is one extracted snapshot of the society's financial statement:
// cost codes in the order they appear in the sheet, plus the grand total.
type Ledger struct {
	SheetID     string
	SocietyName string

	// Timestamp is the snapshot's recorded time, as displayed in the
	// sheet's timestamp cell.
	Timestamp string

	GrandTotal GrandTotal

	// Warnings collects soft invariant violations found during extraction.
	Warnings []string

	costCodes []*CostCode
	byName    map[string]*CostCode
}

// NewLedger builds an empty ledger for the given source sheet.
func NewLedger(sheetID string) *Ledger {
	return &Ledger{
		SheetID: sheetID,
		byName:  make(map[string]*CostCode),
	}
}

// AddCostCode appends a cost code, preserving sheet order. Duplicate names
// are rejected rather than silently overwritten.
func (l *Ledger) AddCostCode(c *CostCode) error {
	if _, ok := l.byName[c.Name]; ok {
		return fmt.Errorf("cost code %q: %w", c.Name, ErrDuplicateCostCode)
	}
	l.byName[c.Name] = c
	l.costCodes = append(l.costCodes, c)
	return nil
}

// CostCodes returns the cost codes in the order they appear in the sheet.
func (l *Ledger) CostCodes() []*CostCode {
	return l.costCodes
}

// CostCode looks up a cost code by name.
func (l *Ledger) CostCode(name string) (*CostCode, bool) {
	c, ok := l.byName[name]
	return c, ok
}

// AddWarning records a non-fatal problem with the extracted snapshot.
func (l *Ledger) AddWarning(format string, args ...any) {
	l.Warnings = append(l.Warnings, fmt.Sprintf(format, args...))
}
