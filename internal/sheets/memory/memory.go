// Package memory provides an in-memory spreadsheet used by tests and dry
// runs in place of the Google Sheets adapter.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ledgercheck/internal/sheets"
)

type Store struct {
	mu         sync.Mutex
	grids      map[string][][]string
	namedRange map[string]string
	highlights map[string][]int
	hidden     map[string]bool
	deleted    map[string]bool
}

// Ensure interface conformance
var (
	_ sheets.SnapshotReader   = (*Store)(nil)
	_ sheets.Highlighter      = (*Store)(nil)
	_ sheets.BaselineResolver = (*Store)(nil)
	_ sheets.SheetAdmin       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		grids:      make(map[string][][]string),
		namedRange: make(map[string]string),
		highlights: make(map[string][]int),
		hidden:     make(map[string]bool),
		deleted:    make(map[string]bool),
	}
}

// SetSheet installs or replaces a sheet's rows.
func (s *Store) SetSheet(name string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids[name] = rows
	delete(s.deleted, name)
}

// SetNamedRange points a named range at a sheet.
func (s *Store) SetNamedRange(name, sheetName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namedRange[name] = sheetName
}

func (s *Store) Snapshot(_ context.Context, sheetName string) (sheets.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.grids[sheetName]
	if !ok || s.deleted[sheetName] {
		return sheets.Grid{}, fmt.Errorf("sheet %q not found", sheetName)
	}
	return sheets.NewGrid(rows), nil
}

func (s *Store) HighlightRows(_ context.Context, sheetName string, rows []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grids[sheetName]; !ok {
		return fmt.Errorf("sheet %q not found", sheetName)
	}
	s.highlights[sheetName] = append(s.highlights[sheetName], rows...)
	return nil
}

func (s *Store) BaselineSheet(_ context.Context, namedRange string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheetName, ok := s.namedRange[namedRange]
	if !ok {
		return "", fmt.Errorf("named range %q not found", namedRange)
	}
	return sheetName, nil
}

func (s *Store) HideSheet(_ context.Context, sheetName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grids[sheetName]; !ok {
		return fmt.Errorf("sheet %q not found", sheetName)
	}
	s.hidden[sheetName] = true
	return nil
}

func (s *Store) DeleteSheet(_ context.Context, sheetName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grids[sheetName]; !ok {
		return fmt.Errorf("sheet %q not found", sheetName)
	}
	s.deleted[sheetName] = true
	return nil
}

// Highlighted returns the rows highlighted on a sheet, for assertions.
func (s *Store) Highlighted(sheetName string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.highlights[sheetName]...)
}

// IsHidden reports whether a sheet has been hidden.
func (s *Store) IsHidden(sheetName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden[sheetName]
}

// IsDeleted reports whether a sheet has been deleted.
func (s *Store) IsDeleted(sheetName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted[sheetName]
}
