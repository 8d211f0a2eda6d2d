package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ledger-reconciliation-backend/internal/apperrors"

	"github.com/google/uuid"
)

// Export formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// Export is a downloadable audit artifact. The hash chain travels with the
// events so a third party can verify integrity offline.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
	EventCount  int
}

// Export produces the ordered event list for a company in line-delimited JSON
// or CSV, optionally bounded by date. The chain is verified before export; a
// corrupted chain fails the export rather than shipping tampered data.
func (t *Trail) Export(companyID uuid.UUID, format string, start, end *time.Time) (*Export, error) {
	switch format {
	case FormatJSONL, FormatCSV:
	default:
		return nil, apperrors.Invalid("unsupported export format %q", format)
	}

	verification, err := t.Verify(companyID)
	if err != nil {
		return nil, err
	}
	if !verification.Valid {
		return nil, fmt.Errorf("%w: %s (event %s)", apperrors.ErrChainCorrupted, verification.Detail, verification.BrokenAt)
	}

	events, err := t.events.AllInOrder(companyID, start, end)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	contentType := "application/x-ndjson"
	ext := "jsonl"

	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(&body)
		for i := range events {
			if err := enc.Encode(&events[i]); err != nil {
				return nil, err
			}
		}
	case FormatCSV:
		contentType = "text/csv"
		ext = "csv"
		w := csv.NewWriter(&body)
		if err := w.Write([]string{"seq", "created_at", "actor_type", "actor_id", "verb", "entity_type", "entity_id", "payload", "prev_hash", "hash"}); err != nil {
			return nil, err
		}
		for i := range events {
			ev := &events[i]
			row := []string{
				strconv.FormatInt(ev.Seq, 10),
				ev.CreatedAt.Format(time.RFC3339),
				ev.ActorType,
				ev.ActorID,
				ev.Verb,
				ev.EntityType,
				ev.EntityID,
				ev.Payload,
				ev.PrevHash,
				ev.Hash,
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	}

	return &Export{
		Filename:    fmt.Sprintf("audit_%s_%s.%s", companyID, time.Now().UTC().Format("2006-01-02"), ext),
		ContentType: contentType,
		Body:        body.Bytes(),
		EventCount:  len(events),
	}, nil
}
