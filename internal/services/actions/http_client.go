package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPLedgerClient talks to the accounting ledger's REST API. Token exchange
// happens outside this core; the client receives an already-decrypted bearer
// token.
type HTTPLedgerClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPLedgerClient(baseURL, token string) *HTTPLedgerClient {
	return &HTTPLedgerClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPLedgerClient) CreateDeposit(req LedgerRequest) (*LedgerResult, error) {
	return c.post("/deposits", req)
}

func (c *HTTPLedgerClient) MarkInvoicePaid(req LedgerRequest) (*LedgerResult, error) {
	return c.post(fmt.Sprintf("/invoices/%s/payments", req.TargetID), req)
}

func (c *HTTPLedgerClient) CreateTransfer(req LedgerRequest) (*LedgerResult, error) {
	return c.post("/transfers", req)
}

func (c *HTTPLedgerClient) CreateExpense(req LedgerRequest) (*LedgerResult, error) {
	return c.post("/expenses", req)
}

func (c *HTTPLedgerClient) post(path string, payload LedgerRequest) (*LedgerResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Surface the provider's code and message verbatim.
		return nil, fmt.Errorf("ledger API %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.ID == "" {
		return nil, fmt.Errorf("ledger API returned no id: %s", bytes.TrimSpace(raw))
	}

	return &LedgerResult{ExternalID: parsed.ID, Raw: raw}, nil
}
