package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"ledgercheck/internal/core"
	"ledgercheck/internal/storage"
)

// Sender sends a rendered report and returns the Message-ID used.
type Sender interface {
	Send(ctx context.Context, report *Report, attachments []Attachment, inReplyTo string) (string, error)
}

// StateStore is the slice of storage the sink needs for email threading.
type StateStore interface {
	LoadState(ctx context.Context) (storage.State, error)
	SetSuccessEmailID(ctx context.Context, id string) error
	SetErrorEmailID(ctx context.Context, id string) error
}

// EmailSink delivers change and failure reports straight over SMTP. The
// checker uses it when no message broker is configured; the notify worker
// uses the same rendering and threading through DeliverSerializedChanges.
type EmailSink struct {
	renderer *Renderer
	sender   Sender
	store    StateStore
	sheetURL string
	pdfURL   string

	// Attachments accompany the next change report, typically the fresh
	// and baseline PDF ledgers.
	Attachments []Attachment
}

func NewEmailSink(renderer *Renderer, sender Sender, store StateStore, sheetURL, pdfURL string) *EmailSink {
	return &EmailSink{
		renderer: renderer,
		sender:   sender,
		store:    store,
		sheetURL: sheetURL,
		pdfURL:   pdfURL,
	}
}

// DeliverChanges renders and emails a change report, threading it under the
// previous one.
func (s *EmailSink) DeliverChanges(ctx context.Context, changes *core.Changes, _ string) error {
	report, err := s.renderer.Render(changes, s.sheetURL, s.pdfURL)
	if err != nil {
		return err
	}
	return s.sendThreaded(ctx, report, s.Attachments, successThread)
}

// DeliverSerializedChanges renders and emails changes that arrived in their
// serialized form, as the notify worker receives them off the queue. The
// event's own links override the sink's configured ones.
func (s *EmailSink) DeliverSerializedChanges(ctx context.Context, raw []byte, sheetURL, pdfURL string) error {
	var changes core.Changes
	if err := json.Unmarshal(raw, &changes); err != nil {
		return fmt.Errorf("unmarshal change event: %w", err)
	}
	if sheetURL == "" {
		sheetURL = s.sheetURL
	}
	if pdfURL == "" {
		pdfURL = s.pdfURL
	}
	report, err := s.renderer.Render(&changes, sheetURL, pdfURL)
	if err != nil {
		return err
	}
	return s.sendThreaded(ctx, report, s.Attachments, successThread)
}

// DeliverFailureReport emails the current failure streak.
func (s *EmailSink) DeliverFailureReport(ctx context.Context, failures []storage.Failure) error {
	messages := make([]string, len(failures))
	for i, f := range failures {
		messages[i] = fmt.Sprintf("%s: %s", f.OccurredAt.Format("02/01/2006 15:04"), f.Message)
	}
	return s.sendThreaded(ctx, s.renderer.RenderFailureReport(messages), nil, errorThread)
}

type threadKind int

const (
	successThread threadKind = iota
	errorThread
)

func (s *EmailSink) sendThreaded(ctx context.Context, report *Report, attachments []Attachment, kind threadKind) error {
	state, err := s.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load email thread state: %w", err)
	}
	inReplyTo := state.SuccessEmailID
	if kind == errorThread {
		inReplyTo = state.ErrorEmailID
	}

	id, err := s.sender.Send(ctx, report, attachments, inReplyTo)
	if err != nil {
		return err
	}

	if kind == errorThread {
		err = s.store.SetErrorEmailID(ctx, id)
	} else {
		err = s.store.SetSuccessEmailID(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("save email thread id: %w", err)
	}
	return nil
}
