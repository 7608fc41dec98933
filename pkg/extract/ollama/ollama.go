// Package ollama implements the extraction collaborator on a locally
// hosted Ollama server with JSON-schema constrained output.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/entlink/entlink/pkg/extract"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/semaphore"
)

// Client is an extract.Extractor backed by an Ollama server.
type Client struct {
	model       string
	temperature float64
	reqLock     *semaphore.Weighted
	client      *api.Client
}

var _ extract.Extractor = (*Client)(nil)

// NewClientParams contains configuration for creating a Client.
type NewClientParams struct {
	// Model is the chat model used for extraction.
	Model string
	// BaseURL points at the Ollama server; empty selects the default.
	BaseURL string
	// APIKey is sent as a bearer token when the server sits behind a proxy.
	APIKey string
	// Temperature is the sampling temperature, 0.1 by default.
	Temperature float64
	// MaxConcurrentRequests bounds in-flight extractions, 4 by default.
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewClient creates the extraction client.
func NewClient(params NewClientParams) (*Client, error) {
	var (
		base *url.URL
		err  error
	)
	if params.BaseURL != "" {
		base, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base url: %w", err)
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.APIKey,
			},
			rt: http.DefaultTransport,
		},
	}

	temperature := params.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}
	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &Client{
		model:       params.Model,
		temperature: temperature,
		reqLock:     semaphore.NewWeighted(maxConcurrent),
		client:      api.NewClient(base, httpClient),
	}, nil
}

func (c *Client) Extract(ctx context.Context, text string) (*extract.Extraction, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	schema, err := json.Marshal(extract.ResponseSchema(extract.Extraction{}))
	if err != nil {
		return nil, fmt.Errorf("failed to encode response schema: %w", err)
	}

	prompt := extract.Prompt + text
	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream:  &stream,
		Format:  json.RawMessage(schema),
		Options: map[string]any{"temperature": c.temperature},
	}

	// Ollama defaults to a 4096-token context; widen it for long inputs.
	if enc, err := tiktoken.GetEncoding("o200k_base"); err == nil {
		if tokens := len(enc.Encode(prompt, nil, nil)) + 200; tokens > 4096 {
			req.Options["num_ctx"] = tokens
		}
	}

	var content string
	if err := c.client.Chat(ctx, req, func(cr api.ChatResponse) error {
		content += cr.Message.Content
		return nil
	}); err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	var result extract.Extraction
	if err := extract.DecodeResponse(content, &result); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	return &result, nil
}
