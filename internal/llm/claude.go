package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"property-intelligence/internal/common/config"
	"property-intelligence/internal/common/logger"
)

// Claude binds the Anthropic messages API.
type Claude struct {
	apiKey       string
	baseURL      string
	workingModel string
	temperature  float64
	available    bool
	client       *http.Client
	logger       logger.Logger
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []claudeMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClaude constructs the binding and probes the candidate model list once.
// The first model that answers a minimal test call is pinned for the process
// lifetime; if every candidate fails the binding stays unavailable.
func NewClaude(cfg config.ProviderConfig, log logger.Logger) *Claude {
	c := &Claude{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		client: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		logger: log.With(map[string]interface{}{
			"provider": ProviderClaude,
		}),
	}

	if c.apiKey == "" {
		c.logger.Warn("API key not configured, provider unavailable", nil)
		return c
	}

	for _, model := range cfg.Models {
		if err := c.probe(model); err != nil {
			c.logger.Warn("model probe failed", map[string]interface{}{
				"model": model,
				"error": err.Error(),
			})
			continue
		}
		c.workingModel = model
		c.available = true
		c.logger.Info("provider initialized", map[string]interface{}{
			"model": model,
		})
		break
	}

	if !c.available {
		c.logger.Error("no working models found, provider unavailable", nil)
	}

	return c
}

func (c *Claude) Name() string { return ProviderClaude }

func (c *Claude) Available() bool { return c.available }

func (c *Claude) probe(model string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.client.Timeout)
	defer cancel()

	_, err := c.call(ctx, model, "Hi", 1)
	return err
}

// Generate sends one prompt to the pinned model. Network, HTTP and API
// errors are returned as values; nothing is raised past this boundary.
func (c *Claude) Generate(ctx context.Context, prompt string, maxTokens int) (*GenerateResult, error) {
	if !c.available {
		return nil, fmt.Errorf("%w: claude not available", ErrProviderUnavailable)
	}
	return c.call(ctx, c.workingModel, prompt, maxTokens)
}

func (c *Claude) call(ctx context.Context, model, prompt string, maxTokens int) (*GenerateResult, error) {
	reqBody := claudeRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrCallFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrCallFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrCallFailed, resp.StatusCode, string(respBody))
	}

	var apiResp claudeResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrCallFailed, err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrCallFailed, apiResp.Error.Message)
	}

	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrCallFailed)
	}

	var text string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	// Missing usage metadata degrades to 0 tokens, never an error.
	return &GenerateResult{
		Text:       text,
		TokensUsed: apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		Model:      model,
	}, nil
}
