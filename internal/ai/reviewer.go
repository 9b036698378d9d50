// Package ai asks a language model for a plain-language second opinion on
// finished bill analyses. It never changes analysis results.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/medbill-audit/internal/config"
	"github.com/garyjia/medbill-audit/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrMissingAPIKey is returned when no OpenAI API key is configured
var ErrMissingAPIKey = errors.New("openai.api_key is required for reviews")

const systemPrompt = "You are a patient advocate who reviews Indian hospital bills and insurance claims. " +
	"Explain findings in plain language and suggest concrete next steps for the patient. " +
	"Always respond with valid JSON wrapped in ```json and ``` markers."

// ReviewRequest carries a bill and its finished analyses
type ReviewRequest struct {
	Items      []models.BillLineItem
	Fraud      *models.FraudAnalysisResult
	Coverage   *models.InsuranceAnalysis
	PolicyName string
	Question   string // Optional patient question
}

// Reviewer produces second opinions with an OpenAI chat model
type Reviewer struct {
	client    *openai.Client
	model     string
	temp      float32
	maxTokens int
	logger    *zap.Logger
}

// NewReviewer creates a new reviewer
func NewReviewer(cfg config.OpenAIConfig, logger *zap.Logger) (*Reviewer, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Reviewer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// opinion is the JSON shape the model is asked to return
type opinion struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// Review asks the model to explain the analyses of one bill
func (r *Reviewer) Review(ctx context.Context, req ReviewRequest) (*models.SecondOpinion, error) {
	prompt, err := buildReviewPrompt(req)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Sending review request to OpenAI",
		zap.String("model", r.model),
		zap.Int("items", len(req.Items)))

	// Rely on prompt instructions for JSON output rather than the JSON
	// response format, which not every compatible endpoint supports.
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: r.temp,
		MaxTokens:   r.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		r.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var result opinion
	if err := decodeOpinion(content, &result); err != nil {
		r.logger.Error("Failed to parse OpenAI response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, fmt.Errorf("failed to parse response: empty summary")
	}

	model := resp.Model
	if model == "" {
		model = r.model
	}

	r.logger.Info("Second opinion generated",
		zap.String("model", model),
		zap.Int("recommendations", len(result.Recommendations)))

	return &models.SecondOpinion{
		Summary:         result.Summary,
		Recommendations: result.Recommendations,
		Model:           model,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// decodeOpinion parses the model output, falling back to the first JSON
// object embedded in surrounding text or a fenced block
func decodeOpinion(content string, out *opinion) error {
	err := json.Unmarshal([]byte(content), out)
	if err == nil {
		return nil
	}

	if start := findJSONStart(content); start >= 0 {
		if end := findJSONEnd(content, start); end > start {
			if jerr := json.Unmarshal([]byte(content[start:end]), out); jerr == nil {
				return nil
			}
		}
	}
	return err
}

// buildReviewPrompt builds the review prompt
func buildReviewPrompt(req ReviewRequest) (string, error) {
	payload := struct {
		Items    []models.BillLineItem       `json:"items"`
		Fraud    *models.FraudAnalysisResult `json:"fraudAnalysis,omitempty"`
		Coverage *models.InsuranceAnalysis   `json:"coverageAnalysis,omitempty"`
	}{req.Items, req.Fraud, req.Coverage}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode review payload: %w", err)
	}

	var b strings.Builder
	b.WriteString("Review this hospital bill and the automated analyses below.\n\n")
	if req.PolicyName != "" {
		fmt.Fprintf(&b, "**Insurance policy:** %s\n\n", req.PolicyName)
	}
	fmt.Fprintf(&b, "**Bill and analyses:**\n%s\n\n", data)
	if q := strings.TrimSpace(req.Question); q != "" {
		fmt.Fprintf(&b, "**Patient question:** %s\n\n", q)
	}
	b.WriteString(`Do not recompute the figures; treat the analyses as correct.
Please respond with ONLY a valid JSON object with this exact structure:
{
  "summary": string explaining the findings in plain language,
  "recommendations": [string array of next steps for the patient]
}`)

	return b.String(), nil
}

// findJSONStart finds the start of JSON content in a string
func findJSONStart(content string) int {
	return strings.IndexByte(content, '{')
}

// findJSONEnd finds the end of the JSON object starting at start by
// counting braces outside string literals
func findJSONEnd(content string, start int) int {
	if start < 0 || start >= len(content) || content[start] != '{' {
		return -1
	}

	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		c := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}

	return -1
}
