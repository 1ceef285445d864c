package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledgercheck/internal/core"
	"ledgercheck/internal/log"
	"ledgercheck/internal/sheets"
	"ledgercheck/internal/storage"
)

// failureThresholds are the consecutive-failure counts that trigger a
// failure report. Past the last threshold the checker stays silent until a
// success resets the streak.
var failureThresholds = []int{3, 8, 15}

// ChangeSink delivers a confirmed set of changes, either by publishing a
// change event or by sending the email directly.
type ChangeSink interface {
	DeliverChanges(ctx context.Context, changes *core.Changes, sheetName string) error
}

// FailureSink reports a streak of failed checks.
type FailureSink interface {
	DeliverFailureReport(ctx context.Context, failures []storage.Failure) error
}

// StateStore is the persistence the checker needs between runs.
type StateStore interface {
	LoadState(ctx context.Context) (storage.State, error)
	SaveChanges(ctx context.Context, changesJSON []byte, sheetName string) error
	RecordSuccess(ctx context.Context) error
	RecordFailure(ctx context.Context, message string) (int, error)
	Failures(ctx context.Context) ([]storage.Failure, error)
}

// CheckConfig carries the per-spreadsheet settings of a check run.
type CheckConfig struct {
	// NewSheetName is the sheet holding the fresh ledger snapshot.
	NewSheetName string

	// BaselineNamedRange points at the baseline sheet. When resolution
	// fails, BaselineSheetName is used instead.
	BaselineNamedRange string
	BaselineSheetName  string

	// DeleteUnchangedSheet removes the fresh sheet again when the check
	// found nothing to report. Set when the sheet is a temporary import.
	DeleteUnchangedSheet bool
}

// CheckService runs one ledger check: snapshot both sheets, extract, diff,
// and deliver anything new. State between runs lives in the store.
type CheckService struct {
	reader      sheets.SnapshotReader
	highlighter sheets.Highlighter
	resolver    sheets.BaselineResolver
	admin       sheets.SheetAdmin
	extractor   *TotalsExtractor
	differ      *LedgerDiffer
	store       StateStore
	sink        ChangeSink
	failureSink FailureSink
	cfg         CheckConfig
	logger      *log.Logger
}

func NewCheckService(
	reader sheets.SnapshotReader,
	highlighter sheets.Highlighter,
	resolver sheets.BaselineResolver,
	admin sheets.SheetAdmin,
	extractor *TotalsExtractor,
	differ *LedgerDiffer,
	store StateStore,
	sink ChangeSink,
	failureSink FailureSink,
	cfg CheckConfig,
	logger *log.Logger,
) *CheckService {
	return &CheckService{
		reader:      reader,
		highlighter: highlighter,
		resolver:    resolver,
		admin:       admin,
		extractor:   extractor,
		differ:      differ,
		store:       store,
		sink:        sink,
		failureSink: failureSink,
		cfg:         cfg,
		logger:      logger.WithComponent(log.ComponentChecker),
	}
}

// Check runs one check against the configured sheet.
func (s *CheckService) Check(ctx context.Context) error {
	return s.CheckSheet(ctx, s.cfg.NewSheetName)
}

// CheckSheet runs one check against the named sheet and records its outcome.
// A failed run feeds the consecutive-failure streak; hitting a threshold
// sends a failure report.
func (s *CheckService) CheckSheet(ctx context.Context, sheetName string) error {
	start := time.Now()
	err := s.run(ctx, sheetName)
	if err != nil {
		s.recordFailure(ctx, err)
		return err
	}
	if recErr := s.store.RecordSuccess(ctx); recErr != nil {
		s.logger.ErrorContext(ctx, "Failed to record successful check",
			log.FieldOperation, log.OpCheck,
			log.FieldError, recErr.Error())
	}
	s.logger.InfoContext(ctx, "Check completed",
		log.FieldOperation, log.OpCheck,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (s *CheckService) run(ctx context.Context, sheetName string) error {
	baselineSheet, err := s.baselineSheet(ctx)
	if err != nil {
		return err
	}

	newGrid, err := s.reader.Snapshot(ctx, sheetName)
	if err != nil {
		return fmt.Errorf("snapshot new sheet %q: %w", sheetName, err)
	}
	oldGrid, err := s.reader.Snapshot(ctx, baselineSheet)
	if err != nil {
		return fmt.Errorf("snapshot baseline sheet %q: %w", baselineSheet, err)
	}

	newLedger, err := s.extractor.Extract(ctx, sheetName, newGrid)
	if err != nil {
		return fmt.Errorf("extract new ledger: %w", err)
	}
	oldLedger, err := s.extractor.Extract(ctx, baselineSheet, oldGrid)
	if err != nil {
		return fmt.Errorf("extract baseline ledger: %w", err)
	}

	changes, err := s.differ.Diff(ctx, newLedger, oldLedger, newGrid, oldGrid)
	if err != nil {
		return fmt.Errorf("diff ledgers: %w", err)
	}

	if changes.Unchanged {
		s.logger.InfoContext(ctx, "No changes since the baseline",
			log.FieldOperation, log.OpCheck,
			log.FieldSheet, sheetName)
		return s.discardSheet(ctx, sheetName)
	}

	state, err := s.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load check state: %w", err)
	}
	if s.alreadyReported(ctx, changes, state) {
		s.logger.InfoContext(ctx, "Changes already reported, not delivering again",
			log.FieldOperation, log.OpCheck,
			log.FieldSheet, sheetName)
		return s.discardSheet(ctx, sheetName)
	}

	if len(changes.NewRows) > 0 {
		if err := s.highlighter.HighlightRows(ctx, sheetName, changes.NewRows); err != nil {
			return fmt.Errorf("highlight changed rows: %w", err)
		}
	}

	if err := s.sink.DeliverChanges(ctx, changes, sheetName); err != nil {
		return fmt.Errorf("deliver changes: %w", err)
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	if err := s.store.SaveChanges(ctx, payload, sheetName); err != nil {
		return fmt.Errorf("save changes: %w", err)
	}

	// The previous changes sheet is superseded, not deleted: the treasurer
	// may still want to look at it.
	if state.ChangesSheet != "" && state.ChangesSheet != sheetName {
		if err := s.admin.HideSheet(ctx, state.ChangesSheet); err != nil {
			s.logger.WarnContext(ctx, "Failed to hide superseded changes sheet",
				log.FieldOperation, log.OpCheck,
				log.FieldSheet, state.ChangesSheet,
				log.FieldError, err.Error())
		}
	}

	s.logger.InfoContext(ctx, "Delivered new changes",
		log.FieldOperation, log.OpCheck,
		log.FieldSheet, sheetName,
		log.FieldSociety, changes.SocietyName,
		log.FieldEntries, changes.EntryCount())
	return nil
}

func (s *CheckService) baselineSheet(ctx context.Context) (string, error) {
	if s.cfg.BaselineNamedRange != "" {
		name, err := s.resolver.BaselineSheet(ctx, s.cfg.BaselineNamedRange)
		if err == nil {
			return name, nil
		}
		if s.cfg.BaselineSheetName == "" {
			return "", fmt.Errorf("resolve baseline named range %q: %w", s.cfg.BaselineNamedRange, err)
		}
		s.logger.WarnContext(ctx, "Named range resolution failed, using configured baseline sheet",
			log.FieldOperation, log.OpCheck,
			log.FieldSheet, s.cfg.BaselineSheetName,
			log.FieldError, err.Error())
	}
	if s.cfg.BaselineSheetName == "" {
		return "", fmt.Errorf("no baseline sheet configured")
	}
	return s.cfg.BaselineSheetName, nil
}

// alreadyReported compares the fresh result against the last delivered one.
func (s *CheckService) alreadyReported(ctx context.Context, changes *core.Changes, state storage.State) bool {
	if state.ChangesJSON == "" {
		return false
	}
	var prev core.Changes
	if err := json.Unmarshal([]byte(state.ChangesJSON), &prev); err != nil {
		s.logger.WarnContext(ctx, "Saved changes are unreadable, treating as new",
			log.FieldOperation, log.OpCheck,
			log.FieldError, err.Error())
		return false
	}
	return changes.SameTotalsAs(&prev)
}

func (s *CheckService) discardSheet(ctx context.Context, sheetName string) error {
	if !s.cfg.DeleteUnchangedSheet {
		return nil
	}
	if err := s.admin.DeleteSheet(ctx, sheetName); err != nil {
		return fmt.Errorf("delete unchanged sheet %q: %w", sheetName, err)
	}
	return nil
}

func (s *CheckService) recordFailure(ctx context.Context, cause error) {
	count, err := s.store.RecordFailure(ctx, cause.Error())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to record check failure",
			log.FieldOperation, log.OpCheck,
			log.FieldError, err.Error())
		return
	}
	s.logger.ErrorContext(ctx, "Check failed",
		log.FieldOperation, log.OpCheck,
		log.FieldFailures, count,
		log.FieldError, cause.Error())

	if s.failureSink == nil || !atThreshold(count) {
		return
	}
	failures, err := s.store.Failures(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load failure streak",
			log.FieldOperation, log.OpCheck,
			log.FieldError, err.Error())
		return
	}
	if err := s.failureSink.DeliverFailureReport(ctx, failures); err != nil {
		s.logger.ErrorContext(ctx, "Failed to deliver failure report",
			log.FieldOperation, log.OpCheck,
			log.FieldFailures, count,
			log.FieldError, err.Error())
	}
}

func atThreshold(count int) bool {
	for _, t := range failureThresholds {
		if count == t {
			return true
		}
	}
	return false
}
