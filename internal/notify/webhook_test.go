package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedDelivery struct {
	path       string
	deliveryID string
	payload    eventPayload
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedDelivery) {
	t.Helper()

	var deliveries []capturedDelivery
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload eventPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		deliveries = append(deliveries, capturedDelivery{
			path:       r.URL.Path,
			deliveryID: r.Header.Get("X-Delivery-ID"),
			payload:    payload,
		})
		w.WriteHeader(status)
	}))
	return server, &deliveries
}

func TestResponseStarted_PostsEvent(t *testing.T) {
	// Arrange
	server, deliveries := newCaptureServer(t, http.StatusOK)
	defer server.Close()

	sender, err := NewWebhookSender(Config{Enabled: true, BaseURL: server.URL})
	require.NoError(t, err)

	// Act
	err = sender.ResponseStarted(context.Background(), "etl-nightly", 42)

	// Assert
	require.NoError(t, err)
	require.Len(t, *deliveries, 1)
	got := (*deliveries)[0]
	assert.Equal(t, "/response/started", got.path)
	assert.Equal(t, "etl-nightly", got.payload.JobName)
	assert.Equal(t, int64(42), got.payload.IncidentID)
	assert.False(t, got.payload.OccurredAt.IsZero())

	_, err = uuid.Parse(got.deliveryID)
	assert.NoError(t, err, "delivery id should be a uuid")
}

func TestResponseResolved_PostsEvent(t *testing.T) {
	server, deliveries := newCaptureServer(t, http.StatusAccepted)
	defer server.Close()

	sender, err := NewWebhookSender(Config{Enabled: true, BaseURL: server.URL})
	require.NoError(t, err)

	require.NoError(t, sender.ResponseResolved(context.Background(), "billing-export", 7))
	require.Len(t, *deliveries, 1)
	assert.Equal(t, "/response/resolved", (*deliveries)[0].path)
}

func TestDisabledSenderSkipsDelivery(t *testing.T) {
	server, deliveries := newCaptureServer(t, http.StatusOK)
	defer server.Close()

	sender, err := NewWebhookSender(Config{Enabled: false, BaseURL: server.URL})
	require.NoError(t, err)

	require.NoError(t, sender.ResponseStarted(context.Background(), "etl-nightly", 1))
	assert.Empty(t, *deliveries)
}

func TestReceiverErrorPropagates(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusInternalServerError)
	defer server.Close()

	sender, err := NewWebhookSender(Config{Enabled: true, BaseURL: server.URL})
	require.NoError(t, err)

	err = sender.ResponseStarted(context.Background(), "etl-nightly", 1)
	assert.Error(t, err)
}

func TestEnabledRequiresBaseURL(t *testing.T) {
	_, err := NewWebhookSender(Config{Enabled: true})
	assert.Error(t, err)

	_, err = NewWebhookSender(Config{Enabled: false})
	assert.NoError(t, err)
}
