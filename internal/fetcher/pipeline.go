package fetcher

import (
	"context"
	"fmt"
	"time"

	"ledgercheck/internal/log"
)

// SheetImporter copies an uploaded spreadsheet into the comparison
// spreadsheet under a new title.
type SheetImporter interface {
	ImportSheet(ctx context.Context, srcSpreadsheetID, title string) error
}

// DriveStore is the slice of Drive the pipeline needs.
type DriveStore interface {
	UpdatePDF(ctx context.Context, fileID, name string, pdf []byte) (string, error)
	UploadAsSpreadsheet(ctx context.Context, name string, xlsx []byte) (string, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// PipelineConfig identifies the report to fetch and the shared PDF to keep
// current.
type PipelineConfig struct {
	Report    ReportRequest
	PDFFileID string
	PDFName   string
}

// Result is what one fetch leaves behind: the imported sheet's title, the
// link to the refreshed PDF and the PDF bytes for email attachment.
type Result struct {
	SheetName string
	PDFURL    string
	PDF       []byte
}

// Pipeline runs the full ledger fetch: download the PDF, convert it to
// XLSX, upload and import it as a sheet, and refresh the shared PDF copy.
type Pipeline struct {
	expense   *Expense365Client
	converter *Converter
	drive     DriveStore
	importer  SheetImporter
	cfg       PipelineConfig
	logger    *log.Logger
	now       func() time.Time
}

func NewPipeline(expense *Expense365Client, converter *Converter, drive DriveStore, importer SheetImporter, cfg PipelineConfig, logger *log.Logger) *Pipeline {
	return &Pipeline{
		expense:   expense,
		converter: converter,
		drive:     drive,
		importer:  importer,
		cfg:       cfg,
		logger:    logger.WithComponent(log.ComponentFetcher),
		now:       time.Now,
	}
}

// Fetch produces a fresh ledger sheet in the comparison spreadsheet.
func (p *Pipeline) Fetch(ctx context.Context) (*Result, error) {
	pdf, _, err := p.expense.RequestDocument(ctx, p.cfg.Report)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger PDF: %w", err)
	}

	xlsx, err := p.converter.Convert(ctx, pdf, p.cfg.PDFName)
	if err != nil {
		return nil, fmt.Errorf("convert ledger PDF: %w", err)
	}

	sheetName := "New Ledger " + p.now().Format("02/01/2006 15.04.05")
	fileID, err := p.drive.UploadAsSpreadsheet(ctx, sheetName, xlsx)
	if err != nil {
		return nil, fmt.Errorf("upload converted ledger: %w", err)
	}

	if err := p.importer.ImportSheet(ctx, fileID, sheetName); err != nil {
		return nil, fmt.Errorf("import ledger sheet: %w", err)
	}

	// The standalone upload is only a vehicle for the import.
	if err := p.drive.DeleteFile(ctx, fileID); err != nil {
		p.logger.WarnContext(ctx, "Failed to delete temporary upload",
			log.FieldOperation, log.OpFetch,
			"file_id", fileID,
			log.FieldError, err.Error())
	}

	result := &Result{SheetName: sheetName, PDF: pdf}
	if p.cfg.PDFFileID != "" {
		link, err := p.drive.UpdatePDF(ctx, p.cfg.PDFFileID, p.cfg.PDFName, pdf)
		if err != nil {
			return nil, fmt.Errorf("refresh shared PDF: %w", err)
		}
		result.PDFURL = link
	}

	p.logger.InfoContext(ctx, "Fetched fresh ledger",
		log.FieldOperation, log.OpFetch,
		log.FieldSheet, sheetName)
	return result, nil
}
