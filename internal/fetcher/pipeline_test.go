package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeDrive struct {
	uploaded   map[string][]byte
	deleted    []string
	pdfUpdated bool
}

func (f *fakeDrive) UpdatePDF(_ context.Context, fileID, name string, pdf []byte) (string, error) {
	f.pdfUpdated = true
	return "https://drive.google.com/file/d/" + fileID, nil
}

func (f *fakeDrive) UploadAsSpreadsheet(_ context.Context, name string, xlsx []byte) (string, error) {
	if f.uploaded == nil {
		f.uploaded = make(map[string][]byte)
	}
	f.uploaded[name] = xlsx
	return "upload-1", nil
}

func (f *fakeDrive) DeleteFile(_ context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return nil
}

type fakeImporter struct {
	imported map[string]string // srcID -> title
}

func (f *fakeImporter) ImportSheet(_ context.Context, srcSpreadsheetID, title string) error {
	if f.imported == nil {
		f.imported = make(map[string]string)
	}
	f.imported[srcSpreadsheetID] = title
	return nil
}

func TestPipelineFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/RequestDocument", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", "Wed, 14 Jan 2026 10:30:00 GMT")
		w.Write([]byte("%PDF ledger"))
	})
	mux.HandleFunc("/convert", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(convertJob{ID: "job-1", Status: "pending"})
	})
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(convertJob{ID: "job-1", Status: "done"})
	})
	mux.HandleFunc("/jobs/job-1/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("xlsx-bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := testLogger()
	expense := NewExpense365Client("treasurer@example.com", "hunter2", logger).WithBaseURL(srv.URL)
	converter := NewConverter(srv.URL, logger)
	drive := &fakeDrive{}
	importer := &fakeImporter{}

	pipeline := NewPipeline(expense, converter, drive, importer, PipelineConfig{
		Report:    ReportRequest{ReportID: 30, UserGroupID: 1},
		PDFFileID: "pdf-1",
		PDFName:   "Ledger.pdf",
	}, logger)
	pipeline.now = func() time.Time {
		return time.Date(2026, 1, 14, 10, 30, 0, 0, time.UTC)
	}

	result, err := pipeline.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if want := "New Ledger 14/01/2026 10.30.00"; result.SheetName != want {
		t.Errorf("SheetName = %q, want %q", result.SheetName, want)
	}
	if string(drive.uploaded[result.SheetName]) != "xlsx-bytes" {
		t.Errorf("converted sheet not uploaded")
	}
	if importer.imported["upload-1"] != result.SheetName {
		t.Errorf("imported = %v", importer.imported)
	}
	if len(drive.deleted) != 1 || drive.deleted[0] != "upload-1" {
		t.Errorf("temporary upload not deleted: %v", drive.deleted)
	}
	if !drive.pdfUpdated {
		t.Errorf("shared PDF not refreshed")
	}
	if !strings.HasPrefix(result.PDFURL, "https://drive.google.com/") {
		t.Errorf("PDFURL = %q", result.PDFURL)
	}
	if string(result.PDF) != "%PDF ledger" {
		t.Errorf("PDF bytes = %q", result.PDF)
	}
}

func TestPipelineSkipsPDFWhenNotConfigured(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/RequestDocument", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF ledger"))
	})
	mux.HandleFunc("/convert", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(convertJob{ID: "job-1", Status: "done"})
	})
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(convertJob{ID: "job-1", Status: "done"})
	})
	mux.HandleFunc("/jobs/job-1/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("xlsx-bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := testLogger()
	drive := &fakeDrive{}
	pipeline := NewPipeline(
		NewExpense365Client("treasurer@example.com", "hunter2", logger).WithBaseURL(srv.URL),
		NewConverter(srv.URL, logger),
		drive, &fakeImporter{},
		PipelineConfig{Report: ReportRequest{ReportID: 30}},
		logger,
	)

	result, err := pipeline.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if drive.pdfUpdated || result.PDFURL != "" {
		t.Errorf("PDF should not be touched without a file id")
	}
}
