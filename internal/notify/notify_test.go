package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_Publish(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e := NewEvent(SubjectGuideCreated, map[string]string{"id": "g1"})
	require.NoError(t, NewWebhook(srv.URL).Publish(context.Background(), e))

	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, SubjectGuideCreated, got.Subject)
	assert.Equal(t, map[string]any{"id": "g1"}, got.Data)
}

func TestWebhook_PublishNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Publish(context.Background(), NewEvent(SubjectGuideDeleted, nil))
	assert.Error(t, err)
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestMulti_PublishesToAll(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("down")}
	ok := &recordingPublisher{}

	err := Multi{failing, ok}.Publish(context.Background(), NewEvent(SubjectUserRegistered, nil))

	assert.EqualError(t, err, "down")
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
}
