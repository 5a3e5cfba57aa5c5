package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ladywillingdontech-stack/healthai/internal/intake"
	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// OpenAIClient implements the engine's NLG collaborator against the OpenAI
// chat completion API.  It is only ever called with a bounded context; a
// deadline that expires surfaces as an error and the engine aborts the turn
// without mutating stored state.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient constructs an OpenAI-backed NLG client for the given API
// key and model name.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		// default to a modern small model; can be overridden via env
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}
}

// Question asks the model to phrase the next intake question for the field
// the engine selected.
func (c *OpenAIClient) Question(ctx context.Context, phase pkg.Phase, field intake.FieldSlot, data map[string]pkg.FieldValue) (string, error) {
	known, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	user := fmt.Sprintf("Intake phase: %s\nAsk for: %s (expected: %s)\nCollected data: %s",
		phase, field.ID, field.Kind, known)
	return c.complete(ctx, QuestionSystemPrompt, user, 0.3)
}

// Narrative asks the model for the clinical narrative of a finalized record.
func (c *OpenAIClient) Narrative(ctx context.Context, data map[string]pkg.FieldValue, alert pkg.AlertStatus) (string, error) {
	payload, err := json.Marshal(struct {
		Data  map[string]pkg.FieldValue `json:"data"`
		Alert pkg.AlertStatus           `json:"alert_status"`
	}{data, alert})
	if err != nil {
		return "", err
	}
	return c.complete(ctx, NarrativeSystemPrompt, string(payload), 0.1)
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
