// Package notify renders ledger change reports and sends them by email.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/Rhymond/go-money"

	"ledgercheck/internal/core"
)

//go:embed templates/email.html
var templatesFS embed.FS

// Report is a rendered notification, ready for the mailer.
type Report struct {
	Subject string
	HTML    string
	Text    string
}

type entryView struct {
	Date        string
	Description string
	Amount      string
	Expense     bool
}

type costCodeView struct {
	Name            string
	Entries         []entryView
	ChangeInBalance string
	Balance         string
}

type grandTotalView struct {
	TotalIn               string
	TotalOut              string
	BalanceBroughtForward string
	TotalBalance          string
	ChangeInTotalBalance  string
}

type emailData struct {
	SocietyName string
	Since       string
	CostCodes   []costCodeView
	GrandTotal  grandTotalView
	Warnings    []string
	SheetURL    string
	PDFURL      string
}

// Renderer turns a Changes value into the email the treasurer reads.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/email.html")
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render builds the change report. Cost codes with no entries and no
// balance movement are left out; nobody wants forty empty tables.
func (r *Renderer) Render(changes *core.Changes, sheetURL, pdfURL string) (*Report, error) {
	data := emailData{
		SocietyName: changes.SocietyName,
		Since:       since(changes.OldLedgerTimestamp),
		Warnings:    changes.Warnings,
		SheetURL:    sheetURL,
		PDFURL:      pdfURL,
		GrandTotal: grandTotalView{
			TotalIn:               gbp(changes.GrandTotal.TotalIn),
			TotalOut:              gbp(changes.GrandTotal.TotalOut),
			BalanceBroughtForward: gbp(changes.GrandTotal.BalanceBroughtForward),
			TotalBalance:          gbp(changes.GrandTotal.TotalBalance),
			ChangeInTotalBalance:  gbp(changes.GrandTotal.ChangeInTotalBalance),
		},
	}

	for _, cc := range changes.CostCodes() {
		if len(cc.Entries) == 0 && cc.ChangeInBalance.IsZero() {
			continue
		}
		view := costCodeView{
			Name:            cc.Name,
			ChangeInBalance: gbp(cc.ChangeInBalance),
			Balance:         gbp(cc.Balance),
		}
		for _, e := range cc.Entries {
			view.Entries = append(view.Entries, entryView{
				Date:        e.Date,
				Description: e.Description,
				Amount:      gbp(e.Amount.Signed()),
				Expense:     !e.Amount.IsIncome(),
			})
		}
		data.CostCodes = append(data.CostCodes, view)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render email template: %w", err)
	}

	return &Report{
		Subject: fmt.Sprintf("%s ledger update", changes.SocietyName),
		HTML:    buf.String(),
		Text:    plainText(data),
	}, nil
}

// RenderFailureReport builds the error email sent after repeated failed
// checks.
func (r *Renderer) RenderFailureReport(messages []string) *Report {
	var b strings.Builder
	fmt.Fprintf(&b, "The ledger checker has failed %d times in a row.\n\n", len(messages))
	b.WriteString("Most recent errors:\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "  - %s\n", m)
	}
	b.WriteString("\nThe checker keeps retrying; this report repeats if the problem persists.\n")
	return &Report{
		Subject: "Ledger checker is failing",
		Text:    b.String(),
	}
}

// plainText is the fallback body for clients that refuse HTML.
func plainText(data emailData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ledger update\n", data.SocietyName)
	fmt.Fprintf(&b, "Changes since %s.\n\n", data.Since)
	for _, cc := range data.CostCodes {
		fmt.Fprintf(&b, "%s\n", cc.Name)
		for _, e := range cc.Entries {
			fmt.Fprintf(&b, "  %s  %s  %s\n", e.Date, e.Amount, e.Description)
		}
		fmt.Fprintf(&b, "  Change in balance: %s\n", cc.ChangeInBalance)
		fmt.Fprintf(&b, "  Balance: %s\n\n", cc.Balance)
	}
	fmt.Fprintf(&b, "Grand total\n")
	fmt.Fprintf(&b, "  Total income: %s\n", data.GrandTotal.TotalIn)
	fmt.Fprintf(&b, "  Total expenditure: %s\n", data.GrandTotal.TotalOut)
	fmt.Fprintf(&b, "  Balance brought forward: %s\n", data.GrandTotal.BalanceBroughtForward)
	fmt.Fprintf(&b, "  Total balance: %s\n", data.GrandTotal.TotalBalance)
	fmt.Fprintf(&b, "  Change since the last check: %s\n", data.GrandTotal.ChangeInTotalBalance)
	if len(data.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range data.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	fmt.Fprintf(&b, "\nSpreadsheet: %s\n", data.SheetURL)
	if data.PDFURL != "" {
		fmt.Fprintf(&b, "PDF ledger: %s\n", data.PDFURL)
	}
	return b.String()
}

func gbp(m core.Money) string {
	return money.New(m.Pence, money.GBP).Display()
}

func since(timestamp string) string {
	if timestamp == "" {
		return "the last check"
	}
	return timestamp
}
