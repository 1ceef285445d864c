package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ledgercheck/internal/log"
)

const (
	convertPollInterval = 2 * time.Second
	convertTimeout      = 120 * time.Second
)

// Converter talks to the PDF-to-XLSX conversion service: upload, poll the
// job until it finishes, download the result.
type Converter struct {
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
}

func NewConverter(baseURL string, logger *log.Logger) *Converter {
	return &Converter{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		logger:     logger.WithComponent(log.ComponentFetcher),
	}
}

type convertJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// errJobPending keeps the poll loop retrying.
var errJobPending = fmt.Errorf("conversion still running")

// Convert turns a PDF into XLSX bytes. The whole conversion, polling
// included, is bounded by a two-minute deadline.
func (c *Converter) Convert(ctx context.Context, pdf []byte, filename string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	job, err := c.upload(ctx, pdf, filename)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "Uploaded PDF for conversion",
		log.FieldOperation, log.OpConvert,
		"job_id", job.ID,
		"bytes", len(pdf))

	poll := backoff.WithContext(backoff.NewConstantBackOff(convertPollInterval), ctx)
	err = backoff.Retry(func() error {
		status, err := c.status(ctx, job.ID)
		if err != nil {
			return backoff.Permanent(err)
		}
		switch status.Status {
		case "done":
			return nil
		case "error":
			return backoff.Permanent(fmt.Errorf("conversion job %s failed: %s", job.ID, status.Error))
		default:
			return errJobPending
		}
	}, poll)
	if err != nil {
		return nil, fmt.Errorf("wait for conversion: %w", err)
	}

	return c.download(ctx, job.ID)
}

func (c *Converter) upload(ctx context.Context, pdf []byte, filename string) (*convertJob, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, fmt.Errorf("write upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload PDF: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("upload PDF: status %d", resp.StatusCode)
	}

	var job convertJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("upload response carries no job id")
	}
	return &job, nil
}

func (c *Converter) status(ctx context.Context, jobID string) (*convertJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll job %s: %w", jobID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll job %s: status %d", jobID, resp.StatusCode)
	}
	var job convertJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job status: %w", err)
	}
	return &job, nil
}

func (c *Converter) download(ctx context.Context, jobID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID+"/download", nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download job %s: %w", jobID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download job %s: status %d", jobID, resp.StatusCode)
	}
	xlsx, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read converted file: %w", err)
	}
	c.logger.InfoContext(ctx, "Downloaded converted spreadsheet",
		log.FieldOperation, log.OpConvert,
		"job_id", jobID,
		"bytes", len(xlsx))
	return xlsx, nil
}
