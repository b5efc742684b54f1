// Package vision talks to an Ollama-compatible vision model endpoint and
// gates its responses through a visual-grounding check.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/designscore/designscore/internal/analysis"
	"github.com/designscore/designscore/internal/prompt"
)

// generation options sent with every request.
const (
	genTemperature   = 0.3
	genTopP          = 0.9
	genRepeatPenalty = 1.1
)

const healthTimeout = 5 * time.Second

// Client is an HTTP client for a vision-capable model behind the Ollama
// generate API.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a Client. baseURL carries no trailing slash.
func NewClient(baseURL, model string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("vision"),
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature   float64 `json:"temperature"`
	NumPredict    int     `json:"num_predict"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate sends the prompt plus the screenshot at imagePath to the model
// and returns the validated response text. Any transport, status, or
// grounding failure is a vision-stage error.
func (c *Client) Generate(ctx context.Context, promptText, imagePath, analysisType string) (string, error) {
	encoded, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	budget := prompt.BudgetFor(prompt.AnalysisType(analysisType))
	payload := generateRequest{
		Model:  c.model,
		Prompt: promptText,
		Images: []string{encoded},
		Stream: false,
		Options: generateOptions{
			Temperature:   genTemperature,
			NumPredict:    budget.MaxTokens,
			TopP:          genTopP,
			RepeatPenalty: genRepeatPenalty,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindDependency,
			"marshal generate request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindDependency,
			"build generate request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending vision request",
		zap.String("model", c.model),
		zap.String("analysis_type", analysisType),
		zap.Int("num_predict", budget.MaxTokens))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindDependency,
			"vision endpoint unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindDependency,
			"read generate response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindDependency,
			fmt.Sprintf("vision endpoint returned status %d", resp.StatusCode), nil)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindDependency,
			"decode generate response", err)
	}
	if parsed.Error != "" {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindDependency,
			"model error: "+parsed.Error, nil)
	}

	content := strings.TrimSpace(parsed.Response)
	if err := validateResponse(content); err != nil {
		return "", err
	}

	c.logger.Debug("vision response accepted", zap.Int("chars", len(content)))
	return content, nil
}

// Health reports whether the model endpoint answers its tags listing.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vision endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
