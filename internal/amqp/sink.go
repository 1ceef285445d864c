package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"ledgercheck/internal/core"
)

// ChangePublisher adapts the AMQP client to the checker's change sink: each
// confirmed change set becomes one published event for the notify worker.
type ChangePublisher struct {
	client   *Client
	sheetURL string

	// PDFURL is set by the fetch pipeline when it refreshed the shared
	// PDF before this check.
	PDFURL string
}

func NewChangePublisher(client *Client, sheetURL string) *ChangePublisher {
	return &ChangePublisher{client: client, sheetURL: sheetURL}
}

func (p *ChangePublisher) DeliverChanges(ctx context.Context, changes *core.Changes, _ string) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	msg := NewChangeEventMessage(changes.SocietyName, payload, p.sheetURL, p.PDFURL, changes.OldLedgerTimestamp)
	return p.client.PublishChanges(ctx, msg)
}
