package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewService(srv.URL, 0, nil)
	err := s.Send(context.Background(), &Message{
		Title: "Statement processed",
		Body:  "bank_statement from bank@example.com",
		Data:  map[string]any{"transactions": 3},
	})
	require.NoError(t, err)

	assert.Equal(t, "Statement processed", got.Title)
	assert.Equal(t, "bank_statement from bank@example.com", got.Body)
	assert.Equal(t, float64(3), got.Data["transactions"])
}

func TestSend_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "channel archived", http.StatusGone)
	}))
	defer srv.Close()

	s := NewService(srv.URL, 0, nil)

	err := s.Send(context.Background(), &Message{Body: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
	assert.Contains(t, err.Error(), "channel archived")

	assert.Error(t, s.Send(context.Background(), &Message{Title: "no body"}))
	assert.Error(t, s.Send(context.Background(), nil))
}
