package sheets

import "context"

// Ports for outbound spreadsheet adapters.
type (
	// SnapshotReader fetches the full cell grid of a named sheet in a
	// single read. All searching and offset arithmetic happens locally
	// on the returned Grid.
	SnapshotReader interface {
		Snapshot(ctx context.Context, sheetName string) (Grid, error)
	}

	// Highlighter marks rows of a sheet for human review.
	Highlighter interface {
		// HighlightRows paints a background colour across the given
		// zero-based row indices.
		HighlightRows(ctx context.Context, sheetName string, rows []int) error
	}

	// BaselineResolver resolves the named reference that points at the
	// baseline ("old") ledger sheet.
	BaselineResolver interface {
		// BaselineSheet returns the title of the sheet the named range
		// points to.
		BaselineSheet(ctx context.Context, namedRange string) (string, error)
	}

	// SheetAdmin covers the housekeeping a check run performs on the
	// spreadsheet: hiding a superseded changes sheet and deleting
	// temporary uploads.
	SheetAdmin interface {
		HideSheet(ctx context.Context, sheetName string) error
		DeleteSheet(ctx context.Context, sheetName string) error
	}
)
