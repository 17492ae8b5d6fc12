package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SystemPreamble is the fixed system message sent with every completion
// request.
const SystemPreamble = "You are a helpful AI assistant. Provide clear, accurate, and helpful responses."

// fallbackErrorMessage is substituted when the endpoint rejects a request
// without providing a message of its own.
const fallbackErrorMessage = "request failed"

// ClientConfig holds the fixed request parameters for a Client.
type ClientConfig struct {
	// Endpoint is the chat completion URL (e.g., "https://api.openai.com/v1/chat/completions").
	Endpoint string

	// Model is the model identifier sent with every request.
	Model string

	// MaxTokens bounds the output length.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64

	// Timeout bounds the network await. Zero means a 2 minute default.
	Timeout time.Duration
}

// Client issues single-turn chat completion requests to a fixed endpoint.
// One attempt per call; retries are the caller's business.
type Client struct {
	config     ClientConfig
	logger     *zap.Logger
	httpClient *http.Client
}

// NewClient creates a Client with the given fixed parameters.
func NewClient(config ClientConfig, logger *zap.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		// Completions can be slow; bound the wait so a stalled request
		// surfaces as a TransportError instead of hanging forever.
		timeout = 2 * time.Minute
	}

	return &Client{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SourceLabel identifies the provider/model behind this client, used to
// annotate successful assistant turns.
func (c *Client) SourceLabel() string {
	return c.config.Model
}

// Complete issues exactly one completion request and returns the reply text.
//
// The request body carries the system preamble followed by the user
// utterance. history is accepted as an extension point but is not sent:
// the in-scope behavior is single-turn.
//
// Fails with ErrNoCredential when credential is empty (no network call is
// made), *ProviderError on a non-2xx response, and *TransportError when no
// response reached us.
func (c *Client) Complete(ctx context.Context, credential, utterance string, history []Message) (string, error) {
	if credential == "" {
		return "", ErrNoCredential
	}

	req := ChatRequest{
		Model: c.config.Model,
		Messages: []Message{
			{Role: "system", Content: SystemPreamble},
			{Role: "user", Content: utterance},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("sending completion request",
		zap.String("endpoint", c.config.Endpoint),
		zap.String("model", c.config.Model),
		zap.Int("body_size", len(reqBody)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		message := fallbackErrorMessage
		var errResp ErrorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}

		c.logger.Warn("completion endpoint rejected request",
			zap.Int("status", httpResp.StatusCode),
			zap.String("message", message),
		)
		return "", &ProviderError{Status: httpResp.StatusCode, Message: message}
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Status: httpResp.StatusCode, Message: "no completion choices returned"}
	}

	return resp.Choices[0].Message.Content, nil
}
