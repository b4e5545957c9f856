package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newGatewayForTest(t *testing.T, textURL, visionURL string) (*Gateway, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	gateway := NewGateway(Config{
		OpenRouterBaseURL: textURL,
		OpenRouterAPIKey:  "sk-or-test",
		OpenRouterModel:   "anthropic/claude-3.5-sonnet",
		GeminiBaseURL:     visionURL,
		GeminiAPIKey:      "gemini-test",
		GeminiModel:       "gemini-2.0-flash-exp",
		Timeout:           2 * time.Second,
	}, logrus.NewEntry(logger))

	return gateway, hook
}

func TestCompleteTextParsesCompletion(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  Привет! 👋  "}}]}`))
	}))
	defer server.Close()

	gateway, _ := newGatewayForTest(t, server.URL, server.URL)

	text, ok := gateway.CompleteText(context.Background(), "скажи привет")
	if !ok {
		t.Fatalf("expected completion to be present")
	}
	if text != "Привет! 👋" {
		t.Fatalf("expected trimmed completion, got %q", text)
	}

	if gotPath != "/chat/completions" {
		t.Fatalf("expected /chat/completions path, got %s", gotPath)
	}
	if gotAuth != "Bearer sk-or-test" {
		t.Fatalf("expected bearer credential, got %q", gotAuth)
	}
	if gotBody["model"] != "anthropic/claude-3.5-sonnet" {
		t.Fatalf("expected model in request body, got %v", gotBody["model"])
	}
	messages, ok := gotBody["messages"].([]interface{})
	if !ok || len(messages) != 1 {
		t.Fatalf("expected one user message, got %v", gotBody["messages"])
	}
	first, _ := messages[0].(map[string]interface{})
	if first["role"] != "user" || first["content"] != "скажи привет" {
		t.Fatalf("expected user prompt in body, got %v", first)
	}
}

func TestCompleteTextAbsentOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	gateway, hook := newGatewayForTest(t, server.URL, server.URL)

	if _, ok := gateway.CompleteText(context.Background(), "prompt"); ok {
		t.Fatalf("expected absent result on non-200 status")
	}

	last := hook.LastEntry()
	if last == nil || last.Level != logrus.WarnLevel || last.Data["event"] != "ai_text_unavailable" {
		t.Fatalf("expected warn-level degradation log, got %v", last)
	}
}

func TestCompleteTextAbsentOnTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	logger, _ := logtest.NewNullLogger()
	gateway := NewGateway(Config{
		OpenRouterBaseURL: server.URL,
		OpenRouterModel:   "m",
		GeminiBaseURL:     server.URL,
		GeminiModel:       "m",
		Timeout:           50 * time.Millisecond,
	}, logrus.NewEntry(logger))

	start := time.Now()
	if _, ok := gateway.CompleteText(context.Background(), "prompt"); ok {
		t.Fatalf("expected absent result on timeout")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected bounded call, took %s", elapsed)
	}
}

func TestCompleteTextAbsentOnEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	gateway, _ := newGatewayForTest(t, server.URL, server.URL)

	if _, ok := gateway.CompleteText(context.Background(), "prompt"); ok {
		t.Fatalf("expected absent result on empty choices")
	}
}

func TestCompleteTextRejectsEmptyPrompt(t *testing.T) {
	gateway, _ := newGatewayForTest(t, "http://unused", "http://unused")

	if _, ok := gateway.CompleteText(context.Background(), "   "); ok {
		t.Fatalf("expected absent result for empty prompt")
	}
}

func TestAnalyzeImageParsesFirstCandidate(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	var gotPath, gotKey string
	var gotBody visionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Кот на подоконнике."}]}}]}`))
	}))
	defer server.Close()

	gateway, _ := newGatewayForTest(t, server.URL, server.URL)

	text, ok := gateway.AnalyzeImage(context.Background(), image, "")
	if !ok {
		t.Fatalf("expected analysis to be present")
	}
	if text != "Кот на подоконнике." {
		t.Fatalf("unexpected analysis text: %q", text)
	}

	if !strings.HasSuffix(gotPath, "/gemini-2.0-flash-exp:generateContent") {
		t.Fatalf("expected model generateContent path, got %s", gotPath)
	}
	if gotKey != "gemini-test" {
		t.Fatalf("expected key query credential, got %q", gotKey)
	}

	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 2 {
		t.Fatalf("expected prompt + inline_data parts, got %+v", gotBody.Contents)
	}
	if gotBody.Contents[0].Parts[0].Text != DefaultImagePrompt {
		t.Fatalf("expected default prompt, got %q", gotBody.Contents[0].Parts[0].Text)
	}
	inline := gotBody.Contents[0].Parts[1].InlineData
	if inline == nil || inline.MimeType != "image/jpeg" {
		t.Fatalf("expected jpeg inline data, got %+v", inline)
	}
	if inline.Data != base64.StdEncoding.EncodeToString(image) {
		t.Fatalf("expected base64 image payload")
	}
	if gotBody.GenerationConfig.MaxOutputTokens != 2048 {
		t.Fatalf("expected generation config, got %+v", gotBody.GenerationConfig)
	}
}

func TestAnalyzeImageAbsentOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	gateway, hook := newGatewayForTest(t, server.URL, server.URL)

	if _, ok := gateway.AnalyzeImage(context.Background(), []byte{0x01}, "prompt"); ok {
		t.Fatalf("expected absent result on non-200 status")
	}

	last := hook.LastEntry()
	if last == nil || last.Data["event"] != "ai_vision_unavailable" {
		t.Fatalf("expected vision degradation log, got %v", last)
	}
}

func TestAnalyzeImageAbsentOnEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	gateway, _ := newGatewayForTest(t, server.URL, server.URL)

	if _, ok := gateway.AnalyzeImage(context.Background(), []byte{0x01}, "prompt"); ok {
		t.Fatalf("expected absent result on empty candidates")
	}
}

func TestAnalyzeImageRejectsEmptyImage(t *testing.T) {
	gateway, _ := newGatewayForTest(t, "http://unused", "http://unused")

	if _, ok := gateway.AnalyzeImage(context.Background(), nil, "prompt"); ok {
		t.Fatalf("expected absent result for empty image")
	}
}

func TestSmartReplyPromptEmbedsMessage(t *testing.T) {
	prompt := SmartReplyPrompt("посоветуй книгу")

	if !strings.Contains(prompt, "посоветуй книгу") {
		t.Fatalf("expected user message in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "ChatBot Becks") {
		t.Fatalf("expected persona in prompt, got %q", prompt)
	}
}
