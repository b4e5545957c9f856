// Package ai wraps the external analysis providers behind bounded, optional
// calls. Providers are unreliable enrichments: every operation makes exactly
// one attempt under a fixed timeout and reports absence instead of failing,
// so callers always have a defined degraded path.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/siberianesports-creator/chatbotbecks/internal/logging"
)

// DefaultImagePrompt is the question sent to the vision provider when no
// specific prompt is given.
const DefaultImagePrompt = "Опиши это изображение"

const defaultTimeout = 30 * time.Second

// Config carries the injected provider endpoints and credentials.
type Config struct {
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	GeminiBaseURL     string
	GeminiAPIKey      string
	GeminiModel       string
	Timeout           time.Duration
}

// Gateway issues provider calls over plain HTTP/JSON.
type Gateway struct {
	cfg    Config
	http   *http.Client
	logger *logrus.Entry
}

// NewGateway constructs a Gateway. The per-call timeout falls back to the
// default when unset.
func NewGateway(cfg Config, logger *logrus.Entry) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Logger()
	}

	cfg.OpenRouterBaseURL = strings.TrimRight(cfg.OpenRouterBaseURL, "/")
	cfg.GeminiBaseURL = strings.TrimRight(cfg.GeminiBaseURL, "/")

	return &Gateway{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteText asks the text-completion provider for a reply to the prompt.
// The second result is false on timeout, transport error, non-200 status, or
// an empty completion; the caller must treat that as a missing enrichment.
func (g *Gateway) CompleteText(ctx context.Context, prompt string) (string, bool) {
	if g == nil || strings.TrimSpace(prompt) == "" {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body := chatCompletionRequest{
		Model:       g.cfg.OpenRouterModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   1000,
		Temperature: 0.7,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		g.warn("ai_text_unavailable", err)
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.cfg.OpenRouterBaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		g.warn("ai_text_unavailable", err)
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.OpenRouterAPIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		g.warn("ai_text_unavailable", err)
		return "", false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		g.warn("ai_text_unavailable", err)
		return "", false
	}

	if resp.StatusCode != http.StatusOK {
		g.warn("ai_text_unavailable", fmt.Errorf("provider status %d", resp.StatusCode))
		return "", false
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		g.warn("ai_text_unavailable", err)
		return "", false
	}

	if len(out.Choices) == 0 {
		g.warn("ai_text_unavailable", fmt.Errorf("empty choices"))
		return "", false
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		g.warn("ai_text_unavailable", fmt.Errorf("empty completion"))
		return "", false
	}

	return text, true
}

type visionRequest struct {
	Contents         []visionContent        `json:"contents"`
	GenerationConfig visionGenerationConfig `json:"generationConfig"`
}

type visionContent struct {
	Parts []visionPart `json:"parts"`
}

type visionPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *visionInlineData `json:"inline_data,omitempty"`
}

type visionInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type visionGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type visionResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// AnalyzeImage sends the image to the vision provider and returns the first
// candidate's text. Failure policy matches CompleteText: one attempt, absent
// on any non-success.
func (g *Gateway) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, bool) {
	if g == nil || len(image) == 0 {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultImagePrompt
	}

	body := visionRequest{
		Contents: []visionContent{
			{
				Parts: []visionPart{
					{Text: prompt},
					{InlineData: &visionInlineData{
						MimeType: "image/jpeg",
						Data:     base64.StdEncoding.EncodeToString(image),
					}},
				},
			},
		},
		GenerationConfig: visionGenerationConfig{
			Temperature:     0.4,
			TopK:            32,
			TopP:            1,
			MaxOutputTokens: 2048,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		g.warn("ai_vision_unavailable", err)
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.cfg.GeminiBaseURL, g.cfg.GeminiModel, g.cfg.GeminiAPIKey)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		g.warn("ai_vision_unavailable", err)
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		g.warn("ai_vision_unavailable", err)
		return "", false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		g.warn("ai_vision_unavailable", err)
		return "", false
	}

	if resp.StatusCode != http.StatusOK {
		g.warn("ai_vision_unavailable", fmt.Errorf("provider status %d", resp.StatusCode))
		return "", false
	}

	var out visionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		g.warn("ai_vision_unavailable", err)
		return "", false
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		g.warn("ai_vision_unavailable", fmt.Errorf("empty candidates"))
		return "", false
	}

	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		g.warn("ai_vision_unavailable", fmt.Errorf("empty analysis"))
		return "", false
	}

	return text, true
}

// SmartReplyPrompt renders the persona prompt used for trigger-less text
// messages.
func SmartReplyPrompt(userMessage string) string {
	return fmt.Sprintf(`Ты - дружелюбный и полезный Telegram бот ChatBot Becks.
Отвечай кратко, дружелюбно и с эмодзи.

Сообщение пользователя: %s

Ответь как умный помощник, который может поддерживать разговор, давать полезные советы и отвечать на вопросы.
Ответ должен быть на русском языке и не длиннее 200 символов.`, userMessage)
}

func (g *Gateway) warn(event string, err error) {
	g.logger.WithField("event", event).WithError(err).Warn("AI provider call degraded to absent result")
}
