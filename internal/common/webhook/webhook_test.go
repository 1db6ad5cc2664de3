package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPostsJSON(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Notify(Message{
		Event:  "snapshot_captured",
		Fields: map[string]interface{}{"dir": "dataset/realtime/20260101T000000Z"},
	})
	require.NoError(t, err)

	assert.Equal(t, "snapshot_captured", got.Event)
	assert.False(t, got.Timestamp.IsZero(), "timestamp is filled in when absent")
}

func TestNotifyUnconfiguredIsNoop(t *testing.T) {
	assert.NoError(t, NewClient("").Notify(Message{Event: "anything"}))
}

func TestNotifyNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	assert.Error(t, NewClient(srv.URL).Notify(Message{Event: "x"}))
}
