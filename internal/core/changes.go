package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// CostCodeChange is one cost code's slice of a comparison result: the
// declared totals from the new snapshot plus the entries found to be new.
type CostCodeChange struct {
	Name            string  `json:"-"`
	MoneyIn         Money   `json:"moneyIn"`
	MoneyOut        Money   `json:"moneyOut"`
	Balance         Money   `json:"balance"`
	ChangeInBalance Money   `json:"changeInBalance"`
	Entries         []Entry `json:"entries"`
}

// GrandTotalChange mirrors the grand total of the new snapshot together with
// the net movement across all cost codes.
type GrandTotalChange struct {
	TotalIn               Money `json:"totalIn"`
	TotalOut              Money `json:"totalOut"`
	BalanceBroughtForward Money `json:"balanceBroughtForward"`
	TotalBalance          Money `json:"totalBalance"`
	ChangeInTotalBalance  Money `json:"changeInTotalBalance"`
}

// Changes is the result of comparing a new ledger snapshot against the
// baseline. It is a value distinct from the Ledger itself: extraction
// produces Ledgers, differencing produces Changes.
type Changes struct {
	SocietyName        string
	SheetID            string
	OldLedgerTimestamp string

	// Unchanged is set when the grand totals agreed and no row-level
	// comparison was performed.
	Unchanged bool

	GrandTotal GrandTotalChange

	// NewRows holds the zero-based indices of every row of the new sheet
	// absent from the baseline, for the highlight sink. It includes
	// non-date-shaped rows that never become entries.
	NewRows []int

	Warnings []string

	costCodes []*CostCodeChange
	byName    map[string]*CostCodeChange
}

// NewChanges starts an empty comparison result for the given snapshot.
func NewChanges(societyName, sheetID string) *Changes {
	return &Changes{
		SocietyName: societyName,
		SheetID:     sheetID,
		byName:      make(map[string]*CostCodeChange),
	}
}

// AddCostCode registers a cost code slot in sheet order.
func (c *Changes) AddCostCode(cc *CostCodeChange) error {
	if _, ok := c.byName[cc.Name]; ok {
		return fmt.Errorf("cost code %q: %w", cc.Name, ErrDuplicateCostCode)
	}
	c.byName[cc.Name] = cc
	c.costCodes = append(c.costCodes, cc)
	return nil
}

// CostCodes returns the per-cost-code changes in sheet order.
func (c *Changes) CostCodes() []*CostCodeChange {
	return c.costCodes
}

// CostCode looks up a cost code change by name.
func (c *Changes) CostCode(name string) (*CostCodeChange, bool) {
	cc, ok := c.byName[name]
	return cc, ok
}

// AddEntry attaches a newly discovered entry to the named cost code and
// keeps the running balance movements up to date.
func (c *Changes) AddEntry(name string, e Entry) error {
	cc, ok := c.byName[name]
	if !ok {
		return fmt.Errorf("unknown cost code %q", name)
	}
	cc.Entries = append(cc.Entries, e)
	cc.ChangeInBalance = cc.ChangeInBalance.Add(e.Amount.Signed())
	c.GrandTotal.ChangeInTotalBalance = c.GrandTotal.ChangeInTotalBalance.Add(e.Amount.Signed())
	return nil
}

// EntryCount returns the total number of new entries across all cost codes.
func (c *Changes) EntryCount() int {
	n := 0
	for _, cc := range c.costCodes {
		n += len(cc.Entries)
	}
	return n
}

// SameTotalsAs reports whether this result carries the same grand totals as
// a previously saved one, which means it has already been reported.
func (c *Changes) SameTotalsAs(prev *Changes) bool {
	if prev == nil {
		return false
	}
	return c.GrandTotal.TotalIn.Equal(prev.GrandTotal.TotalIn) &&
		c.GrandTotal.TotalOut.Equal(prev.GrandTotal.TotalOut) &&
		c.GrandTotal.BalanceBroughtForward.Equal(prev.GrandTotal.BalanceBroughtForward)
}

// changesJSON is the serialized shape consumed by the notification layer.
type changesJSON struct {
	SocietyName        string           `json:"societyName"`
	SheetID            string           `json:"sheetId"`
	OldLedgerTimestamp string           `json:"oldLedgerTimestamp"`
	CostCodes          json.RawMessage  `json:"costCodes"`
	GrandTotal         GrandTotalChange `json:"grandTotal"`
	Warnings           []string         `json:"warnings,omitempty"`
}

// MarshalJSON emits cost codes as a name-keyed object in sheet order.
func (c *Changes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cc := range c.costCodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(cc.Name)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(cc)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')

	return json.Marshal(changesJSON{
		SocietyName:        c.SocietyName,
		SheetID:            c.SheetID,
		OldLedgerTimestamp: c.OldLedgerTimestamp,
		CostCodes:          json.RawMessage(buf.Bytes()),
		GrandTotal:         c.GrandTotal,
		Warnings:           c.Warnings,
	})
}

// UnmarshalJSON rebuilds a Changes value from saved state. The original
// sheet order of cost codes is not recorded in the JSON object, so reloaded
// results carry their cost codes in name order.
func (c *Changes) UnmarshalJSON(data []byte) error {
	var raw struct {
		changesJSON
		CostCodes map[string]*CostCodeChange `json:"costCodes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Changes{
		SocietyName:        raw.SocietyName,
		SheetID:            raw.SheetID,
		OldLedgerTimestamp: raw.OldLedgerTimestamp,
		GrandTotal:         raw.changesJSON.GrandTotal,
		Warnings:           raw.Warnings,
		byName:             make(map[string]*CostCodeChange),
	}
	names := make([]string, 0, len(raw.CostCodes))
	for name := range raw.CostCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cc := raw.CostCodes[name]
		cc.Name = name
		c.byName[name] = cc
		c.costCodes = append(c.costCodes, cc)
	}
	return nil
}

// entryJSON matches the wire shape of a single new transaction line.
type entryJSON struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Money       Money  `json:"money"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Date:        e.Date,
		Description: e.Description,
		Money:       e.Amount.Signed(),
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Date = raw.Date
	e.Description = raw.Description
	if raw.Money.Pence < 0 {
		e.Amount = Expenditure(raw.Money.Neg())
	} else {
		e.Amount = Income(raw.Money)
	}
	return nil
}
