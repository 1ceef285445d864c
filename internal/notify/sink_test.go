package notify

import (
	"context"
	"testing"
	"time"

	"ledgercheck/internal/storage"
)

type fakeSender struct {
	sent      []*Report
	inReplyTo []string
	nextID    string
}

func (f *fakeSender) Send(_ context.Context, report *Report, _ []Attachment, inReplyTo string) (string, error) {
	f.sent = append(f.sent, report)
	f.inReplyTo = append(f.inReplyTo, inReplyTo)
	return f.nextID, nil
}

type fakeStore struct {
	state storage.State
}

func (f *fakeStore) LoadState(context.Context) (storage.State, error) { return f.state, nil }
func (f *fakeStore) SetSuccessEmailID(_ context.Context, id string) error {
	f.state.SuccessEmailID = id
	return nil
}
func (f *fakeStore) SetErrorEmailID(_ context.Context, id string) error {
	f.state.ErrorEmailID = id
	return nil
}

func newTestSink(t *testing.T, sender *fakeSender, store *fakeStore) *EmailSink {
	t.Helper()
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return NewEmailSink(renderer, sender, store, "https://example.com/sheet", "")
}

func TestDeliverChangesThreadsOnPreviousReport(t *testing.T) {
	sender := &fakeSender{nextID: "2.abc@ledgercheck"}
	store := &fakeStore{state: storage.State{SuccessEmailID: "1.abc@ledgercheck"}}
	sink := newTestSink(t, sender, store)

	if err := sink.DeliverChanges(context.Background(), sampleChanges(t), "New Ledger"); err != nil {
		t.Fatalf("DeliverChanges() error = %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d reports, want 1", len(sender.sent))
	}
	if sender.inReplyTo[0] != "1.abc@ledgercheck" {
		t.Errorf("inReplyTo = %q", sender.inReplyTo[0])
	}
	if store.state.SuccessEmailID != "2.abc@ledgercheck" {
		t.Errorf("SuccessEmailID = %q, want new message id", store.state.SuccessEmailID)
	}
}

func TestDeliverFailureReportUsesErrorThread(t *testing.T) {
	sender := &fakeSender{nextID: "9.err@ledgercheck"}
	store := &fakeStore{state: storage.State{
		SuccessEmailID: "1.abc@ledgercheck",
		ErrorEmailID:   "8.err@ledgercheck",
	}}
	sink := newTestSink(t, sender, store)

	failures := []storage.Failure{
		{OccurredAt: time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC), Message: "snapshot failed"},
		{OccurredAt: time.Date(2026, 1, 14, 10, 30, 0, 0, time.UTC), Message: "snapshot failed"},
		{OccurredAt: time.Date(2026, 1, 14, 11, 0, 0, 0, time.UTC), Message: "snapshot failed"},
	}
	if err := sink.DeliverFailureReport(context.Background(), failures); err != nil {
		t.Fatalf("DeliverFailureReport() error = %v", err)
	}

	if sender.inReplyTo[0] != "8.err@ledgercheck" {
		t.Errorf("inReplyTo = %q, want error thread", sender.inReplyTo[0])
	}
	if store.state.ErrorEmailID != "9.err@ledgercheck" {
		t.Errorf("ErrorEmailID = %q", store.state.ErrorEmailID)
	}
	if store.state.SuccessEmailID != "1.abc@ledgercheck" {
		t.Errorf("SuccessEmailID touched: %q", store.state.SuccessEmailID)
	}
}
