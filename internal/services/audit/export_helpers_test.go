package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"ledger-reconciliation-backend/internal/models"

	"github.com/stretchr/testify/require"
)

func decodeJSONL(t *testing.T, body []byte) []models.AuditEvent {
	t.Helper()
	var events []models.AuditEvent
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev models.AuditEvent
		require.NoError(t, json.Unmarshal(line, &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}
