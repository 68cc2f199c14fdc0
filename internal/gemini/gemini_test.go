package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gplanner/pkg/logx"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "key-abc", Model: "gemini-2.5-flash", BaseURL: srv.URL}, logx.Nop())
	require.NoError(t, err)
	return c
}

func TestGenerateReturnsCandidateText(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "key-abc", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "plan my day", req.Contents[0].Parts[0].Text)

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]string{
					{"text": "08:00 AM - Focus block\n"},
					{"text": "12:30 PM - Lunch walk"},
				}},
			}},
		})
	}))

	text, err := c.Generate(context.Background(), "plan my day")
	require.NoError(t, err)
	assert.Equal(t, "08:00 AM - Focus block\n12:30 PM - Lunch walk", text)
}

func TestGenerateEmptyCandidatesIsNotAnError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	text, err := c.Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGenerateNonOKStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}}`, http.StatusTooManyRequests)
	}))
	_, err := c.Generate(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()
	_, err := NewClient(Config{}, logx.Nop())
	require.Error(t, err)
}
