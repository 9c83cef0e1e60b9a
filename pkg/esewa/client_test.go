package esewa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "EPAYTEST", q.Get("product_code"))
		assert.Equal(t, "110", q.Get("total_amount"))
		assert.Equal(t, "241028-101010-abcdef01", q.Get("transaction_uuid"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"product_code":"EPAYTEST","transaction_uuid":"241028-101010-abcdef01",` +
			`"total_amount":110.0,"status":"COMPLETE","ref_id":"0001TS9"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{StatusURL: srv.URL + "/api/epay/transaction/status/", Timeout: time.Second})
	resp := client.CheckStatus(context.Background(), "EPAYTEST", "110", "241028-101010-abcdef01")

	require.False(t, resp.Failed(), resp.Error)
	assert.Equal(t, StatusComplete, resp.Status)
	assert.Equal(t, "0001TS9", resp.RefID)
	assert.Equal(t, "110.0", resp.TotalAmount.String())
}

func TestCheckStatus_ErrorsBecomeResults(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		prefix  string
	}{
		{
			name: "non 2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			},
			prefix: "HTTP 503: service unavailable",
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			prefix: "failed to decode response",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			prefix: "request failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewClient(Config{StatusURL: srv.URL, Timeout: 50 * time.Millisecond})
			resp := client.CheckStatus(context.Background(), "EPAYTEST", "10", "x")

			require.NotNil(t, resp)
			require.True(t, resp.Failed())
			assert.Contains(t, resp.Error, tt.prefix)
			assert.Empty(t, resp.Status)
		})
	}
}

func TestCheckStatus_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	resp := NewClient(Config{StatusURL: url, Timeout: time.Second}).
		CheckStatus(context.Background(), "EPAYTEST", "10", "x")

	require.True(t, resp.Failed())
	assert.Contains(t, resp.Error, "request failed")
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, TestStatusURL, c.statusURL)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}
