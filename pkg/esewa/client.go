package esewa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// maxResponseSize caps how much of a status response body is read (1MB).
const maxResponseSize = 1 << 20

// DefaultTimeout bounds a single status check.
const DefaultTimeout = 30 * time.Second

// Config holds status client configuration.
type Config struct {
	StatusURL string
	Timeout   time.Duration
}

// Client queries the eSewa transaction status endpoint.
type Client struct {
	httpClient *http.Client
	statusURL  string
	debug      bool
}

// NewClient creates a status client. Empty values fall back to the UAT
// endpoint and DefaultTimeout.
func NewClient(config Config) *Client {
	if config.StatusURL == "" {
		config.StatusURL = TestStatusURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		statusURL:  config.StatusURL,
		debug:      os.Getenv("ENV") == "development",
	}
}

// StatusResponse is the status endpoint payload. Error is set instead when the
// call failed; the remaining fields are then empty.
type StatusResponse struct {
	ProductCode     string      `json:"product_code"`
	TransactionUUID string      `json:"transaction_uuid"`
	TotalAmount     json.Number `json:"total_amount"`
	Status          string      `json:"status"`
	RefID           string      `json:"ref_id"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// Failed reports whether the status call itself failed.
func (r *StatusResponse) Failed() bool {
	return r.Error != ""
}

// CheckStatus asks eSewa for the current state of a transaction. Transport
// failures, non-2xx replies and undecodable bodies are reported through
// StatusResponse.Error; it never returns nil.
func (c *Client) CheckStatus(ctx context.Context, productCode, totalAmount, transactionUUID string) *StatusResponse {
	query := url.Values{}
	query.Set(FieldProductCode, productCode)
	query.Set(FieldTotalAmount, totalAmount)
	query.Set(FieldTransactionUUID, transactionUUID)

	endpoint := c.statusURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + query.Encode()
	} else {
		endpoint += "?" + query.Encode()
	}

	var result StatusResponse
	if err := c.doRequest(ctx, endpoint, &result); err != nil {
		log.Warn().
			Err(err).
			Str("transaction_uuid", transactionUUID).
			Msg("[ESEWA] Status check failed")
		return &StatusResponse{Error: err.Error()}
	}
	return &result
}

// doRequest performs a GET and decodes the JSON reply into result.
func (c *Client) doRequest(ctx context.Context, endpoint string, result any) error {
	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Msg("[ESEWA] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("request failed: reading body: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Bytes("response", respBody).
			Msg("[ESEWA] Incoming response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
