// Package ai wraps the AI enhancement collaborator: free text in, a
// structured node suggestion out. Callers apply the suggestion as initial
// field values only, never over existing user edits.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/models"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
	// DefaultBaseURL is the default OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds a single enhancement call.
	DefaultTimeout = 30 * time.Second
)

// ErrEmptyInput is returned when there is no text to enhance.
var ErrEmptyInput = errors.New("ai: empty input text")

// Suggestion is the structured enhancement of a piece of free text.
type Suggestion struct {
	Type        models.NodeType `json:"node_type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	Urgency     int             `json:"urgency"`
	Importance  int             `json:"importance"`
}

// Enhancer turns free text plus a context hint into a Suggestion.
type Enhancer interface {
	Enhance(ctx context.Context, text, contextHint string) (*Suggestion, error)
}

// OpenAIEnhancer implements Enhancer against the OpenAI chat API.
type OpenAIEnhancer struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIEnhancer creates an enhancer. Empty model and baseURL fall back
// to the defaults.
func NewOpenAIEnhancer(apiKey, baseURL, model string, logger *zap.Logger) *OpenAIEnhancer {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	)

	return &OpenAIEnhancer{client: client, model: model, logger: logger}
}

const systemPrompt = "You are a productivity assistant that classifies free-form captures. " +
	"Respond with valid JSON only, with keys: node_type (one of task, project, idea, goal, thought, category), " +
	"title (short), description, tags (array of lowercase strings), urgency (1-10), importance (1-10)."

// Enhance classifies text into a structured suggestion.
func (e *OpenAIEnhancer) Enhance(ctx context.Context, text, contextHint string) (*Suggestion, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	prompt := "Text to classify:\n" + text
	if contextHint != "" {
		prompt += "\n\nContext: " + contextHint
	}

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := e.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enhancement request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	suggestion, err := ParseSuggestion(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Warn("failed_to_parse_enhancement_response", zap.Error(err))
		return nil, err
	}
	return suggestion, nil
}

// ParseSuggestion decodes a model response into a Suggestion, tolerating
// markdown code fences and clamping scores into range.
func ParseSuggestion(content string) (*Suggestion, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var s Suggestion
	if err := json.Unmarshal([]byte(cleaned), &s); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion: %w", err)
	}

	switch s.Type {
	case models.NodeTypeTask, models.NodeTypeProject, models.NodeTypeIdea,
		models.NodeTypeGoal, models.NodeTypeThought, models.NodeTypeCategory:
	default:
		s.Type = models.DefaultNodeType
	}
	s.Urgency = clampScore(s.Urgency)
	s.Importance = clampScore(s.Importance)
	if s.Title == "" {
		s.Title = "Untitled"
	}
	return &s, nil
}

func clampScore(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
