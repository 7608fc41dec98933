// Package openai implements the extraction collaborator on an
// OpenAI-compatible chat completion API with structured output.
package openai

import (
	"context"
	"fmt"

	"github.com/entlink/entlink/pkg/extract"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client is an extract.Extractor backed by an OpenAI-compatible endpoint.
type Client struct {
	model       string
	temperature float64
	client      *openai.Client
}

var _ extract.Extractor = (*Client)(nil)

// NewClientParams contains configuration for creating a Client.
type NewClientParams struct {
	// Model is the chat model used for extraction.
	Model string
	// BaseURL overrides the API endpoint; empty selects the default.
	BaseURL string
	// APIKey authenticates against the endpoint.
	APIKey string
	// Temperature is the sampling temperature, 0.1 by default.
	Temperature float64
}

// NewClient creates the extraction client.
func NewClient(params NewClientParams) *Client {
	opts := []option.RequestOption{}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	if params.APIKey != "" {
		opts = append(opts, option.WithAPIKey(params.APIKey))
	}
	temperature := params.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}

	client := openai.NewClient(opts...)
	return &Client{
		model:       params.Model,
		temperature: temperature,
		client:      &client,
	}
}

func (c *Client) Extract(ctx context.Context, text string) (*extract.Extraction, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "entity_extraction",
		Description: openai.String("Entity mentions and relationship triples found in the text"),
		Schema:      extract.ResponseSchema(extract.Extraction{}),
		Strict:      openai.Bool(true),
	}

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(extract.Prompt + text),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
	}

	response, err := c.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("extraction returned no choices")
	}

	var result extract.Extraction
	if err := extract.DecodeResponse(response.Choices[0].Message.Content, &result); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	return &result, nil
}
