package annotate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

func fastConfig(url string) Config {
	return Config{URL: url, Model: "test-model", RatePerSecond: 1000, Burst: 100}
}

func TestClient_Annotate(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"response":"  two purchases, one fee  "}`))
	}))
	defer server.Close()

	c := New(fastConfig(server.URL+"/"), nil)
	ann, err := c.Annotate(context.Background(), "card **** **** **** 1234", statement.CreditCard)
	require.NoError(t, err)

	assert.Equal(t, &statement.Annotation{Provider: Provider, Model: "test-model", Content: "two purchases, one fee"}, ann)
	assert.Equal(t, "test-model", payload["model"])
	assert.Equal(t, false, payload["stream"])
	prompt, _ := payload["prompt"].(string)
	assert.Contains(t, prompt, "card **** **** **** 1234")
	assert.Contains(t, prompt, "credit_card")
}

func TestClient_ErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(fastConfig(server.URL), nil).Annotate(context.Background(), "text", statement.BankStatement)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Contains(t, err.Error(), "502")
}

func TestClient_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig(server.URL)
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	c := New(cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Annotate(context.Background(), "text", statement.Unknown)
		require.Error(t, err)
		assert.False(t, IsCircuitOpen(err))
	}

	_, err := c.Annotate(context.Background(), "text", statement.Unknown)
	require.Error(t, err)
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	cfg := fastConfig(server.URL)
	cfg.RatePerSecond = 0.001
	cfg.Burst = 1
	c := New(cfg, nil)

	_, err := c.Annotate(context.Background(), "text", statement.Unknown)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Annotate(ctx, "text", statement.Unknown)
	assert.ErrorContains(t, err, "rate limit")
}

func TestClient_ExtractSummary(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"response":"Here you go:\n` + "```json" + `\n{\"opening_balance\": 10}\n` + "```" + `"}`))
	}))
	defer server.Close()

	c := New(fastConfig(server.URL), nil)
	var se SummaryExtractor = c
	obj, err := se.ExtractSummary(context.Background(), "Opening Balance 10", statement.BankStatement)
	require.NoError(t, err)

	assert.JSONEq(t, `{"opening_balance": 10}`, string(obj))
	assert.Equal(t, "json", payload["format"])
	prompt, _ := payload["prompt"].(string)
	assert.Contains(t, prompt, "opening_balance")
	assert.Contains(t, prompt, "Opening Balance 10")
}

func TestJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"wrapped in prose", "sure: {\"a\": {\"b\": 2}} done", `{"a": {"b": 2}}`, false},
		{"no braces", "I could not read it", "", true},
		{"broken object", `{"a": }`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := jsonObject(tt.answer)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestFromConfig(t *testing.T) {
	assert.Nil(t, FromConfig(Config{URL: "  "}, nil))
	assert.NotNil(t, FromConfig(Config{URL: "http://localhost:11434"}, nil))
}

func TestFunc(t *testing.T) {
	want := errors.New("boom")
	var a Annotator = Func(func(context.Context, string, statement.DocumentType) (*statement.Annotation, error) {
		return nil, want
	})
	_, err := a.Annotate(context.Background(), "", statement.Unknown)
	assert.ErrorIs(t, err, want)
}

func TestSummaryFunc(t *testing.T) {
	var se SummaryExtractor = SummaryFunc(func(_ context.Context, text string, _ statement.DocumentType) ([]byte, error) {
		return []byte(text), nil
	})
	got, err := se.ExtractSummary(context.Background(), "{}", statement.Unknown)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestBuildPrompt_Truncates(t *testing.T) {
	prompt := buildPrompt(strings.Repeat("帳", 20), statement.BankStatement, 5)
	assert.Contains(t, prompt, "Bank statement")
	assert.Equal(t, 5, strings.Count(prompt, "帳"))
}
