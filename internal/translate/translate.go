// Package translate provides pluggable article translation providers.
package translate

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

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/bingal/rss-reader/internal/database"
	"github.com/bingal/rss-reader/internal/model"
)

const (
	// DefaultTargetLang is used when no target language is configured.
	DefaultTargetLang = "en"

	defaultLibreTranslateURL = "https://libretranslate.com"
	defaultOpenAIModel       = "gpt-4o-mini"

	requestTimeout = 30 * time.Second
)

// Provider translates text into a target language.
type Provider interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// FromStore builds the configured provider from the settings table and
// returns it together with the configured target language.
func FromStore(db database.Store) (Provider, string, error) {
	provider := settingOr(db, model.SettingTranslationProvider, "libretranslate")
	baseURL := settingOr(db, model.SettingTranslationBaseURL, "")
	apiKey := settingOr(db, model.SettingTranslationAPIKey, "")
	targetLang := settingOr(db, model.SettingTranslationTargetLang, DefaultTargetLang)

	switch provider {
	case "libretranslate":
		return NewLibreTranslate(baseURL, apiKey), targetLang, nil
	case "openai":
		m := settingOr(db, model.SettingTranslationModel, defaultOpenAIModel)
		return NewOpenAI(baseURL, apiKey, m), targetLang, nil
	default:
		return nil, "", fmt.Errorf("unknown translation provider %q", provider)
	}
}

func settingOr(db database.Store, key, fallback string) string {
	val, err := db.GetSetting(key)
	if err != nil || val == "" {
		return fallback
	}
	return val
}

// LibreTranslate talks to a LibreTranslate-compatible /translate endpoint.
type LibreTranslate struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewLibreTranslate creates a provider for the given instance. An empty
// baseURL falls back to the public libretranslate.com instance.
func NewLibreTranslate(baseURL, apiKey string) *LibreTranslate {
	if baseURL == "" {
		baseURL = defaultLibreTranslateURL
	}
	return &LibreTranslate{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Translate sends text to the instance and returns the translated text.
func (lt *LibreTranslate) Translate(ctx context.Context, text, targetLang string) (string, error) {
	payload := map[string]string{
		"q":      text,
		"source": "auto",
		"target": targetLang,
		"format": "text",
	}
	if lt.apiKey != "" {
		payload["api_key"] = lt.apiKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lt.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := lt.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parse translation response: %w", err)
	}
	if result.TranslatedText == "" {
		return "", errors.New("empty translation response")
	}
	return result.TranslatedText, nil
}

// OpenAI translates via an OpenAI-compatible chat completion API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a provider against baseURL (empty means the official
// API) using the given model.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

// Translate asks the chat model for a translation and returns the reply.
func (o *OpenAI) Translate(ctx context.Context, text, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"You are a translator. Translate the user's text into %s. Preserve Markdown formatting. Reply with the translation only.",
		targetLang)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty translation response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
