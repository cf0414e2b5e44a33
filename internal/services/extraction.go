package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const (
	responseBodyLimit = 1 << 20
	errorBodyLimit    = 1 << 16
)

var (
	ErrExtractorNotConfigured = errors.New("extraction api key not configured")
	ErrEmptyExtraction        = errors.New("extraction returned no content")
)

// Extractor turns a prompt into free-form completion text.
type Extractor interface {
	Extract(ctx context.Context, prompt string) (string, error)
}

type DeepSeekConfig struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
}

// DeepSeekClient calls an OpenAI-compatible chat completions endpoint.
type DeepSeekClient struct {
	httpClient *http.Client
	config     DeepSeekConfig
	log        *logger.Logger
}

func NewDeepSeekClient(cfg DeepSeekConfig, log *logger.Logger) *DeepSeekClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &DeepSeekClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		log:        log.With("component", "DeepSeekClient"),
	}
}

func (c *DeepSeekClient) Model() string {
	return c.config.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *DeepSeekClient) Extract(ctx context.Context, prompt string) (string, error) {
	if c.config.APIKey == "" {
		return "", ErrExtractorNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	ctx, span := observability.Tracer().Start(ctx, "DeepSeekClient.Extract")
	defer span.End()

	span.SetAttributes(attribute.String("llm.model", c.config.Model), attribute.Int("llm.prompt_bytes", len(prompt)))

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   4000,
	})

	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))

	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	start := time.Now()

	resp, err := c.httpClient.Do(req)

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("extraction request: %w", err)
	}

	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
		return "", fmt.Errorf("extraction api returned status %d", resp.StatusCode)
	}

	var decoded chatResponse

	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyLimit)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode extraction response: %w", err)
	}

	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", ErrEmptyExtraction
	}

	c.log.Debug("extraction completed", "duration_ms", time.Since(start).Milliseconds())

	return decoded.Choices[0].Message.Content, nil
}
