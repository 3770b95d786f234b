package deliver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/getherald/herald/internal/deliver"
	"github.com/getherald/herald/internal/model"
	"github.com/getherald/herald/internal/secrets"
	"github.com/getherald/herald/internal/sign"

	"github.com/stretchr/testify/require"
)

// received is one callback captured by the test server.
type received struct {
	body      []byte
	signature string
	mediaType string
}

func newReceiver(t *testing.T, status int) (*httptest.Server, *atomic.Int32, chan received) {
	t.Helper()
	var calls atomic.Int32
	out := make(chan received, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		out <- received{
			body:      body,
			signature: r.Header.Get(sign.Header),
			mediaType: r.Header.Get("Content-Type"),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &calls, out
}

func TestSendSignsTransmittedBody(t *testing.T) {
	t.Parallel()
	server, calls, out := newReceiver(t, http.StatusOK)

	store := secrets.NewMemory()
	secret, err := store.Issue(t.Context(), "acme")
	require.NoError(t, err)

	deliverer := deliver.New(store, 5*time.Second)
	payload := model.SuccessPayload("0198b6a0-0000-7000-8000-0123456789ab", map[string]any{"country": "US"})
	require.NoError(t, deliverer.Send(t.Context(), server.URL, "acme", payload))
	require.EqualValues(t, 1, calls.Load())

	got := <-out
	require.Equal(t, "application/json", got.mediaType)
	require.True(t, sign.Verify(got.body, got.signature, secret.Secret))

	var decoded model.CallbackPayload
	require.NoError(t, json.Unmarshal(got.body, &decoded))
	require.Equal(t, payload.JobID, decoded.JobID)
	require.Equal(t, model.StatusCompleted, decoded.Status)
	require.Nil(t, decoded.Error)
}

func TestSendFailurePayload(t *testing.T) {
	t.Parallel()
	server, _, out := newReceiver(t, http.StatusNoContent)

	store := secrets.NewMemory()
	secret, err := store.Issue(t.Context(), "acme")
	require.NoError(t, err)

	deliverer := deliver.New(store, 5*time.Second)
	payload := model.FailurePayload("0198b6a0-0000-7000-8000-0123456789ab",
		model.Failuref("SCAN_ERROR", "connection timed out"))
	require.NoError(t, deliverer.Send(t.Context(), server.URL, "acme", payload))

	got := <-out
	require.True(t, sign.Verify(got.body, got.signature, secret.Secret))

	var decoded model.CallbackPayload
	require.NoError(t, json.Unmarshal(got.body, &decoded))
	require.Equal(t, model.StatusFailed, decoded.Status)
	require.NotNil(t, decoded.Error)
	require.Equal(t, "SCAN_ERROR", decoded.Error.Code)
	require.Nil(t, decoded.Result)
}

func TestSendUnknownTenant(t *testing.T) {
	t.Parallel()
	server, calls, _ := newReceiver(t, http.StatusOK)

	deliverer := deliver.New(secrets.NewMemory(), 5*time.Second)
	err := deliverer.Send(t.Context(), server.URL, "ghost", model.SuccessPayload("j", nil))
	require.ErrorIs(t, err, model.ErrUnknownTenant)
	require.True(t, deliver.Suppressed(err))

	// Nothing reached the receiver.
	require.EqualValues(t, 0, calls.Load())
}

func TestSendRevokedTenant(t *testing.T) {
	t.Parallel()
	server, calls, _ := newReceiver(t, http.StatusOK)

	store := secrets.NewMemory()
	_, err := store.Issue(t.Context(), "acme")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(t.Context(), "acme"))

	deliverer := deliver.New(store, 5*time.Second)
	err = deliverer.Send(t.Context(), server.URL, "acme", model.SuccessPayload("j", nil))
	require.ErrorIs(t, err, model.ErrUnknownTenant)
	require.EqualValues(t, 0, calls.Load())
}

func TestSendServerError(t *testing.T) {
	t.Parallel()
	server, calls, out := newReceiver(t, http.StatusInternalServerError)

	store := secrets.NewMemory()
	_, err := store.Issue(t.Context(), "acme")
	require.NoError(t, err)

	deliverer := deliver.New(store, 5*time.Second)
	err = deliverer.Send(t.Context(), server.URL, "acme", model.SuccessPayload("j", nil))
	require.Error(t, err)
	require.ErrorContains(t, err, "status 500")
	require.False(t, deliver.Suppressed(err))
	require.EqualValues(t, 1, calls.Load())
	<-out
}

func TestSendConnectionRefused(t *testing.T) {
	t.Parallel()
	server, _, _ := newReceiver(t, http.StatusOK)
	url := server.URL
	server.Close()

	store := secrets.NewMemory()
	_, err := store.Issue(t.Context(), "acme")
	require.NoError(t, err)

	deliverer := deliver.New(store, time.Second)
	require.Error(t, deliverer.Send(t.Context(), url, "acme", model.SuccessPayload("j", nil)))
}

func TestValidateURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		scenario string
		url      string
		ok       bool
	}{
		{scenario: "http", url: "http://callback.acme.test/hook", ok: true},
		{scenario: "https with port", url: "https://callback.acme.test:8443/hook", ok: true},
		{scenario: "empty", url: "", ok: false},
		{scenario: "no scheme", url: "callback.acme.test/hook", ok: false},
		{scenario: "ftp", url: "ftp://callback.acme.test/hook", ok: false},
		{scenario: "no host", url: "http:///hook", ok: false},
		{scenario: "garbage", url: "http://bad url", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			err := deliver.ValidateURL(tt.url)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
