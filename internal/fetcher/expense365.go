// Package fetcher pulls a fresh PDF ledger out of eXpense365, converts it
// to a spreadsheet and places both copies where the check can reach them.
package fetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ledgercheck/internal/log"
)

const defaultExpense365BaseURL = "https://service.expense365.com/ws/rest/eXpense365"

// userAgent mimics the mobile app; the service rejects unknown clients.
const userAgent = "eXpense365|1.6.1|Google Pixel XL|Android|10|en_GB"

// ReportRequest identifies the ledger report to download.
type ReportRequest struct {
	ReportID    int `json:"ReportID"`
	UserGroupID int `json:"UserGroupID"`
	SubGroupID  int `json:"SubGroupID"`
}

// Expense365Client downloads ledger PDFs through the eXpense365 app API.
type Expense365Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	password   string
	logger     *log.Logger
}

func NewExpense365Client(email, password string, logger *log.Logger) *Expense365Client {
	return &Expense365Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    defaultExpense365BaseURL,
		email:      email,
		password:   password,
		logger:     logger.WithComponent(log.ComponentFetcher),
	}
}

// WithBaseURL overrides the API endpoint. Tests point it at a local server.
func (c *Expense365Client) WithBaseURL(baseURL string) *Expense365Client {
	c.baseURL = baseURL
	return c
}

// RequestDocument downloads the report as PDF bytes. The returned timestamp
// is the server's Date header, which stamps when this snapshot was taken.
func (c *Expense365Client) RequestDocument(ctx context.Context, report ReportRequest) ([]byte, string, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, "", fmt.Errorf("marshal report request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/RequestDocument", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+
		base64.StdEncoding.EncodeToString([]byte(c.email+":"+c.password)))
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("request document: status %d: %s", resp.StatusCode, snippet)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read document body: %w", err)
	}

	timestamp := resp.Header.Get("Date")
	c.logger.InfoContext(ctx, "Downloaded ledger PDF",
		log.FieldOperation, log.OpFetch,
		"report_id", report.ReportID,
		"bytes", len(pdf),
		"server_date", timestamp)
	return pdf, timestamp, nil
}
