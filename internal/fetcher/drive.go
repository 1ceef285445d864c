package fetcher

import (
	"bytes"
	"context"
	"fmt"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"

	"ledgercheck/internal/log"
	"ledgercheck/internal/sheets/google"
)

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DriveClient keeps the Drive copies of the ledger up to date: the shared
// PDF everyone reads, and the temporary spreadsheet the check imports.
type DriveClient struct {
	svc    *gdrive.Service
	logger *log.Logger
}

// NewDriveFromEnv creates a Drive client with the same service account
// credentials the Sheets adapter uses.
func NewDriveFromEnv(ctx context.Context, logger *log.Logger) (*DriveClient, error) {
	credentialsJSON, err := google.CredentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gdrive.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gdrive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return NewDrive(svc, logger), nil
}

// NewDrive wraps an existing Drive service.
func NewDrive(svc *gdrive.Service, logger *log.Logger) *DriveClient {
	return &DriveClient{svc: svc, logger: logger.WithComponent(log.ComponentFetcher)}
}

// UpdatePDF replaces the content of the shared ledger PDF and pins the new
// revision so older snapshots stay retrievable. Returns the browser link.
func (d *DriveClient) UpdatePDF(ctx context.Context, fileID, name string, pdf []byte) (string, error) {
	file, err := d.svc.Files.Update(fileID, &gdrive.File{Name: name}).
		Media(bytes.NewReader(pdf), googleapi.ContentType("application/pdf")).
		KeepRevisionForever(true).
		Fields("webViewLink").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update PDF %s: %w", fileID, err)
	}
	d.logger.InfoContext(ctx, "Updated ledger PDF on Drive",
		log.FieldOperation, log.OpUpload,
		"file_id", fileID,
		"bytes", len(pdf))
	return file.WebViewLink, nil
}

// UploadAsSpreadsheet uploads XLSX bytes, letting Drive convert them into a
// Google Sheet. The caller imports the sheet and then deletes this file.
func (d *DriveClient) UploadAsSpreadsheet(ctx context.Context, name string, xlsx []byte) (string, error) {
	file, err := d.svc.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.spreadsheet",
	}).
		Media(bytes.NewReader(xlsx), googleapi.ContentType(xlsxMimeType)).
		Fields("id").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("upload spreadsheet %s: %w", name, err)
	}
	d.logger.InfoContext(ctx, "Uploaded converted ledger to Drive",
		log.FieldOperation, log.OpUpload,
		"file_id", file.Id,
		"name", name)
	return file.Id, nil
}

// DeleteFile removes a temporary upload.
func (d *DriveClient) DeleteFile(ctx context.Context, fileID string) error {
	if err := d.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete drive file %s: %w", fileID, err)
	}
	return nil
}
