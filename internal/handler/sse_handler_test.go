package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_esewa/internal/sse"
	"github.com/GTDGit/gtd_esewa/internal/utils"
)

func TestSSEStream_RequiresToken(t *testing.T) {
	r := gin.New()
	r.GET("/events", NewSSEHandler(sse.NewHub(), "secret").Stream)

	w, resp := serve(r, http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	w, resp = serve(r, http.MethodGet, "/events?token=bogus", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_TOKEN", resp.Error.Code)
}

// streamRecorder adds the CloseNotifier gin's Stream needs.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestSSEStream_DeliversCustomerEvents(t *testing.T) {
	hub := sse.NewHub()
	r := gin.New()
	r.GET("/events", NewSSEHandler(hub, "secret").Stream)

	token, err := utils.GenerateJWT("secret", 7, "", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events?token="+token, nil).WithContext(ctx)
	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(7, &sse.PaymentEvent{Event: sse.EventPaymentStatusChanged, TransactionUUID: "u-1", Status: "completed"})
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event:connected")
	assert.Contains(t, body, "event:payment")
	assert.Contains(t, body, `"transactionUuid":"u-1"`)
	assert.Zero(t, hub.ClientCount())
}
