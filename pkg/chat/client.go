package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const providerOpenAI = "openai"

// systemPrompt is the fixed persona instruction sent on every exchange.
const systemPrompt = `You are Kibo, a warm and playful companion for a young child.
You are looking at a picture together and chatting about it.

RULES:
- Keep every answer short: one or two simple sentences.
- Use easy words a small child understands.
- Be curious and encouraging; end with a gentle question when it fits.
- Never be scary, sad, or negative.
- When the conversation suggests a mood or a color, you may call the
  change_background tool with a matching color. Use it sparingly.`

// OpeningPrompt is the user prompt paired with the picture on the first
// turn. Exported so callers recording the dialogue history append the same
// turn the client sends.
const OpeningPrompt = "Look at this picture and start a fun little chat about it with me."

// changeBackgroundTool is the single tool schema offered to the model.
var changeBackgroundTool = map[string]interface{}{
	"type": "function",
	"function": map[string]interface{}{
		"name":        "change_background",
		"description": "Change the background color of the screen to match the mood of the conversation.",
		"parameters": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"color": map[string]interface{}{
					"type":        "string",
					"description": "A CSS color value, e.g. '#e0f7fa' or 'lightyellow'.",
				},
			},
			"required": []string{"color"},
		},
	},
}

// OpenAIClient talks to an OpenAI-compatible chat-completion endpoint.
// Works with any server that accepts vision content parts and function tools.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewOpenAIClient creates a new live model client.
func NewOpenAIClient(opts ...Option) (*OpenAIClient, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &OpenAIClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "chat.openai"),
	}, nil
}

// StartConversation sends the picture with the opening prompt.
func (c *OpenAIClient) StartConversation(ctx context.Context, imageURL string) (*Reply, error) {
	if imageURL == "" {
		return nil, WrapError(providerOpenAI, ErrNoImage)
	}
	return c.complete(ctx, []Turn{NewImageTurn(OpeningPrompt, imageURL)})
}

// ContinueConversation replays the full turn history.
func (c *OpenAIClient) ContinueConversation(ctx context.Context, turns []Turn) (*Reply, error) {
	if len(turns) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyHistory)
	}
	return c.complete(ctx, turns)
}

// Close releases resources.
func (c *OpenAIClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// complete runs one chat completion over the given turns.
func (c *OpenAIClient) complete(ctx context.Context, turns []Turn) (*Reply, error) {
	start := time.Now()

	payload := c.buildPayload(turns)

	resp, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("decode response: %w", err))
	}

	if len(result.Choices) == 0 {
		return nil, WrapError(providerOpenAI, fmt.Errorf("no choices returned"))
	}

	choice := result.Choices[0]
	reply := &Reply{
		Text:  choice.Message.Content,
		Color: c.parseColorCommand(choice.Message.ToolCalls),
	}

	c.logger.Debug("completion done",
		"turns", len(turns),
		"latency_ms", time.Since(start).Milliseconds(),
		"color", reply.Color,
	)

	return reply, nil
}

// buildPayload constructs the API request body.
func (c *OpenAIClient) buildPayload(turns []Turn) map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(turns)+1)
	messages = append(messages, map[string]interface{}{
		"role":    string(RoleSystem),
		"content": systemPrompt,
	})

	for _, turn := range turns {
		m := map[string]interface{}{
			"role": string(turn.Role),
		}
		if turn.ImageURL != "" {
			// Vision turns carry text + image content parts.
			m["content"] = []map[string]interface{}{
				{"type": "text", "text": turn.Content},
				{"type": "image_url", "image_url": map[string]string{"url": turn.ImageURL}},
			}
		} else {
			m["content"] = turn.Content
		}
		messages = append(messages, m)
	}

	payload := map[string]interface{}{
		"model":    c.config.Model,
		"messages": messages,
		"tools":    []map[string]interface{}{changeBackgroundTool},
	}

	if c.config.MaxTokens > 0 {
		payload["max_tokens"] = c.config.MaxTokens
	}
	if c.config.Temperature > 0 {
		payload["temperature"] = c.config.Temperature
	}

	return payload
}

// parseColorCommand extracts at most one change_background command.
// Malformed arguments are dropped, not fatal.
func (c *OpenAIClient) parseColorCommand(calls []apiToolCall) string {
	for _, call := range calls {
		if call.Function.Name != "change_background" {
			c.logger.Warn("unknown tool call ignored", "tool", call.Function.Name)
			continue
		}

		var args struct {
			Color string `json:"color"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			c.logger.Warn("malformed tool arguments dropped",
				"tool", call.Function.Name,
				"error", err,
			)
			continue
		}
		if args.Color == "" {
			continue
		}
		return args.Color
	}
	return ""
}

// post makes a POST request.
func (c *OpenAIClient) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.doWithRetry(ctx, req, body)
}

// doWithRetry performs the request, retrying only if the config asks for it.
func (c *OpenAIClient) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			// Reset body for retry
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = WrapError(providerOpenAI, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			if attempt < c.config.MaxRetries {
				lastErr = c.parseError(resp)
				resp.Body.Close()
				c.logger.Warn("retrying request",
					"attempt", attempt+1,
					"status", resp.StatusCode,
				)
				continue
			}
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (c *OpenAIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	// Try to parse OpenAI-style error
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerOpenAI,
	}
}

// API response types
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string        `json:"role"`
			Content   string        `json:"content"`
			ToolCalls []apiToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type apiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Verify OpenAIClient implements Client at compile time.
var _ Client = (*OpenAIClient)(nil)
