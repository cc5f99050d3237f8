package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/smallbiznis/covercheck/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func messageReply(text string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"model":       "test-model",
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 10},
	}
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *AnthropicGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw, err := NewAnthropicGateway(config.ExtractionConfig{
		APIKey:     "test-key",
		Model:      "test-model",
		MaxTokens:  512,
		MaxRetries: 0,
	}, zap.NewNop(), anthropic.WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)
	return gw
}

func TestAnthropicGatewaySendsDocument(t *testing.T) {
	var body map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageReply("```json\n{\"success\": true, \"insured_name\": \"Acme\", \"coverages\": [{\"coverage_type\": \"GL\"}]}\n```"))
	})

	raw, err := gw.Extract(context.Background(), Document{FileName: "coi.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7")})
	require.NoError(t, err)
	assert.True(t, raw.Success)
	assert.Equal(t, "Acme", raw.InsuredName)
	require.Len(t, raw.Coverages, 1)

	assert.Equal(t, "test-model", body["model"])
	messages := body["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	doc := content[0].(map[string]any)
	assert.Equal(t, "document", doc["type"])
	source := doc["source"].(map[string]any)
	assert.Equal(t, "application/pdf", source["media_type"])
	assert.Equal(t, "JVBERi0xLjc=", source["data"])
}

func TestAnthropicGatewayMalformedReply(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageReply("Sorry, I cannot help with that."))
	})

	_, err := gw.Extract(context.Background(), Document{Data: []byte("%PDF")})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, ReasonMalformed, gwErr.Reason)
}

func TestAnthropicGatewayAuthFailureIsNotRetried(t *testing.T) {
	calls := 0
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})
	gw.retry.MaxRetries = 3

	_, err := gw.Extract(context.Background(), Document{Data: []byte("%PDF")})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 1, calls)
}

func TestNewAnthropicGatewayRequiresKey(t *testing.T) {
	_, err := NewAnthropicGateway(config.ExtractionConfig{}, zap.NewNop())
	require.Error(t, err)
}
