// Package translator translates lyrics and single words through an
// OpenAI-compatible chat completions API.
package translator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lyrics-translator-go/cache"
	"lyrics-translator-go/circuitbreaker"
	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/services"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	serviceName    = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	// AutoDetected is reported as the source language when none was given.
	AutoDetected = "auto-detected"

	lyricsSystemPrompt = "You are a professional translator of song lyrics. Translate line by line and keep the exact line structure of the original."
	wordSystemPrompt   = "You are a precise translator. Reply with the requested translation only."
	wordMaxTokens      = 50
	temperature        = 0.3
)

var ErrEmptyResponse = errors.New("translator: empty response")

// Client calls the chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// Breaker guards every outgoing call. Optional.
	Breaker *circuitbreaker.CircuitBreaker
}

// New creates a translator client.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		// whole-song translations are slow
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    opts.Breaker,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// TranslateLyrics translates a whole song into target. source may be empty.
func (c *Client) TranslateLyrics(ctx context.Context, lyrics, target, source string) (*cache.Translation, error) {
	from := ""
	if source != "" {
		from = " from " + source
	}
	prompt := fmt.Sprintf("Translate the following song lyrics%s to %s.\n"+
		"Keep exactly one output line per input line, keep blank lines blank, and add no notes.\n\n"+
		"Lyrics:\n%s", from, target, lyrics)

	text, err := c.complete(ctx, "translate lyrics", chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: lyricsSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}

	if source == "" {
		source = AutoDetected
	}
	return &cache.Translation{Translated: text, SourceLanguage: source}, nil
}

// TranslateWord translates word as used in sentence.
func (c *Client) TranslateWord(ctx context.Context, word, sentence, target string) (string, error) {
	prompt := fmt.Sprintf("Translate ONLY the word or phrase %q from the following sentence to %s.\n\n"+
		"Sentence: %q\n\n"+
		"Reply with the translation of %q and nothing else.", word, target, sentence, word)

	text, err := c.complete(ctx, "translate word", chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: wordSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   wordMaxTokens,
	})
	if err != nil {
		return "", err
	}

	cleaned := CleanWord(text)
	if cleaned == "" {
		return "", ErrEmptyResponse
	}
	return cleaned, nil
}

// CleanWord strips the quotes and punctuation models like to wrap a one-word answer in.
func CleanWord(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'.,`)
}

func (c *Client) complete(ctx context.Context, op string, body chatRequest) (string, error) {
	var text string
	call := func() error {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding %s request: %w", op, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("error creating %s request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.NewUpstreamError(serviceName, op, 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return services.NewUpstreamError(serviceName, op, resp.StatusCode, errors.New(strings.TrimSpace(string(msg))))
		}

		var out chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return services.NewUpstreamError(serviceName, op, resp.StatusCode, fmt.Errorf("error decoding response: %w", err))
		}
		if len(out.Choices) == 0 {
			return ErrEmptyResponse
		}
		text = strings.TrimSpace(out.Choices[0].Message.Content)
		if text == "" {
			return ErrEmptyResponse
		}

		log.Debugf("%s %s completed in %v", logcolors.LogTranslate, op, time.Since(start).Round(time.Millisecond))
		return nil
	}

	var err error
	if c.breaker == nil {
		err = call()
	} else {
		err = c.breaker.Execute(call, services.IsTransient)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			err = services.NewUpstreamError(serviceName, op, 0, err)
		}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}
