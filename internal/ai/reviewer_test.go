package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/medbill-audit/internal/config"
	"github.com/garyjia/medbill-audit/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chatServer(t *testing.T, content string, captured *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4-0613",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": content},
				},
			},
		})
	}))
}

func testConfig(url string) config.OpenAIConfig {
	return config.OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     url + "/v1/",
		Model:       "gpt-4",
		Temperature: 0.3,
		MaxTokens:   500,
		Timeout:     5 * time.Second,
	}
}

func sampleRequest() ReviewRequest {
	return ReviewRequest{
		Items: []models.BillLineItem{{
			Description: "Complete Blood Count (CBC)",
			Category:    "Lab Tests",
			Quantity:    1,
			UnitPrice:   decimal.NewFromInt(1500),
			TotalPrice:  decimal.NewFromInt(1500),
		}},
		Fraud: &models.FraudAnalysisResult{
			FraudScore:          decimal.NewFromInt(1),
			AnalysisExplanation: "High fraud risk!",
		},
		PolicyName: "Basic Health Cover",
		Question:   "Should I dispute the CBC charge?",
	}
}

func TestReview(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := chatServer(t, `{"summary": "The CBC is overpriced.", "recommendations": ["Ask for an itemized bill", "File a complaint"]}`, &captured)
	defer server.Close()

	reviewer, err := NewReviewer(testConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	op, err := reviewer.Review(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "The CBC is overpriced.", op.Summary)
	assert.Equal(t, []string{"Ask for an itemized bill", "File a complaint"}, op.Recommendations)
	assert.Equal(t, "gpt-4-0613", op.Model)
	assert.False(t, op.GeneratedAt.IsZero())

	assert.Equal(t, "gpt-4", captured.Model)
	assert.Equal(t, 500, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, captured.Messages[0].Role)
	user := captured.Messages[1].Content
	assert.Contains(t, user, "Basic Health Cover")
	assert.Contains(t, user, "Should I dispute the CBC charge?")
	assert.Contains(t, user, `"description": "Complete Blood Count (CBC)"`)
}

func TestReviewExtractsFencedJSON(t *testing.T) {
	content := "Here is my review:\n```json\n{\"summary\": \"Mostly fair {with braces}\", \"recommendations\": []}\n```\nThanks."
	server := chatServer(t, content, nil)
	defer server.Close()

	reviewer, err := NewReviewer(testConfig(server.URL), nil)
	require.NoError(t, err)

	op, err := reviewer.Review(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Mostly fair {with braces}", op.Summary)
}

func TestReviewRejectsUnparseableResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "plain text", content: "I cannot help with that."},
		{name: "empty summary", content: `{"summary": "  ", "recommendations": ["x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.content, nil)
			defer server.Close()

			reviewer, err := NewReviewer(testConfig(server.URL), nil)
			require.NoError(t, err)

			_, err = reviewer.Review(context.Background(), sampleRequest())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to parse response")
		})
	}
}

func TestReviewAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	reviewer, err := NewReviewer(testConfig(server.URL), nil)
	require.NoError(t, err)

	_, err = reviewer.Review(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OpenAI API call failed")
}

func TestNewReviewerRequiresKey(t *testing.T) {
	_, err := NewReviewer(config.OpenAIConfig{Model: "gpt-4"}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestFindJSONBounds(t *testing.T) {
	content := `prefix {"a": "}", "b": {"c": "\"{"}} suffix`
	start := findJSONStart(content)
	require.Equal(t, 7, start)
	end := findJSONEnd(content, start)
	require.Greater(t, end, start)
	assert.True(t, strings.HasSuffix(content[start:end], "}}"))
	assert.True(t, json.Valid([]byte(content[start:end])))

	assert.Equal(t, -1, findJSONStart("no json"))
	assert.Equal(t, -1, findJSONEnd(`{"open": true`, 0))
}

// TestLiveReview calls the real OpenAI API.
// Run with: OPENAI_API_KEY=... go test -v -run TestLiveReview ./internal/ai/...
func TestLiveReview(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping live review test")
	}

	reviewer, err := NewReviewer(config.OpenAIConfig{
		APIKey:      apiKey,
		Model:       "gpt-4",
		Temperature: 0.3,
		MaxTokens:   800,
		Timeout:     60 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	op, err := reviewer.Review(ctx, sampleRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, op.Summary)
	t.Logf("Summary: %s", op.Summary)
}
