package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaComplete_ReportsTokens(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"response":          `{"ok": true}`,
			"done":              true,
			"prompt_eval_count": 321,
			"eval_count":        54,
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "", "llama3.1")
	out, err := client.Complete(context.Background(), "sys", "user prompt")
	require.NoError(t, err)

	assert.Equal(t, "json", got.Format)
	assert.Equal(t, "sys", got.System)
	assert.False(t, got.Stream)
	assert.Equal(t, Temperature, got.Options.Temperature)
	assert.Equal(t, `{"ok": true}`, out.Text)
	assert.Equal(t, "llama3.1", out.Model)
	assert.Equal(t, 321, out.PromptTokens)
	assert.Equal(t, 54, out.CompletionTokens)
	assert.Equal(t, 375, out.TotalTokens)
	assert.True(t, out.Local)
}

func TestOllamaComplete_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "", "").Complete(context.Background(), "sys", "p")
	assert.Error(t, err)
}

func TestOllamaEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	vec, err := NewOllamaClient(srv.URL, "nomic-embed-text", "").GenerateEmbedding(context.Background(), "jd")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestSuggestDQCodes_FiltersUnknownCodes(t *testing.T) {
	stub := &stubCompleter{resp: Completion{Text: `{"codes": ["location_mismatch", "MADE_UP", "LOCATION_MISMATCH"], "rationale": "onsite only"}`}}

	analysis, err := NewAnalyzer(nil).parseAnalysis(validAnalysisJSON)
	require.NoError(t, err)

	got, err := SuggestDQCodes(context.Background(), stub, analysis, "1) Autonomy", []string{"LOCATION_MISMATCH", "COMP_BELOW_THRESHOLD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"LOCATION_MISMATCH"}, got.Codes)
	assert.Equal(t, "onsite only", got.Rationale)
	assert.Contains(t, stub.lastPrompt, "LOCATION_MISMATCH, COMP_BELOW_THRESHOLD")
}
