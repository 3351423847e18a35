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

// Gemini binds the Google generative language REST API.
type Gemini struct {
	apiKey       string
	baseURL      string
	workingModel string
	temperature  float64
	available    bool
	client       *http.Client
	logger       logger.Logger
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGemini constructs the binding and probes the candidate model list once,
// pinning the first model that answers a minimal test call.
func NewGemini(cfg config.ProviderConfig, log logger.Logger) *Gemini {
	g := &Gemini{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		client: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		logger: log.With(map[string]interface{}{
			"provider": ProviderGemini,
		}),
	}

	if g.apiKey == "" {
		g.logger.Warn("API key not configured, provider unavailable", nil)
		return g
	}

	for _, model := range cfg.Models {
		if err := g.probe(model); err != nil {
			g.logger.Warn("model probe failed", map[string]interface{}{
				"model": model,
				"error": err.Error(),
			})
			continue
		}
		g.workingModel = model
		g.available = true
		g.logger.Info("provider initialized", map[string]interface{}{
			"model": model,
		})
		break
	}

	if !g.available {
		g.logger.Error("no working models found, provider unavailable", nil)
	}

	return g
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Available() bool { return g.available }

func (g *Gemini) probe(model string) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.client.Timeout)
	defer cancel()

	_, err := g.call(ctx, model, "hi", 1)
	return err
}

// Generate sends one prompt to the pinned model, converting every failure
// mode into a returned error value.
func (g *Gemini) Generate(ctx context.Context, prompt string, maxTokens int) (*GenerateResult, error) {
	if !g.available {
		return nil, fmt.Errorf("%w: gemini not available", ErrProviderUnavailable)
	}
	return g.call(ctx, g.workingModel, prompt, maxTokens)
}

func (g *Gemini) call(ctx context.Context, model, prompt string, maxTokens int) (*GenerateResult, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	}
	reqBody.GenerationConfig.MaxOutputTokens = maxTokens
	reqBody.GenerationConfig.Temperature = g.temperature

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrCallFailed, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
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

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrCallFailed, err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrCallFailed, apiResp.Error.Message)
	}

	if len(apiResp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates returned", ErrCallFailed)
	}

	var text string
	for _, part := range apiResp.Candidates[0].Content.Parts {
		text += part.Text
	}

	return &GenerateResult{
		Text:       text,
		TokensUsed: apiResp.UsageMetadata.TotalTokenCount,
		Model:      model,
	}, nil
}
