// Package chat talks to an OpenAI-compatible chat endpoint on behalf of the
// astrology guide and degrades to canned replies when it cannot.
package chat

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

	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 20 * time.Second

	SystemPrompt = "You are an expert astrology guide. You explain tarot (upright/reversed), " +
		"palmistry (lines, mounts), and Chinese face reading zones. Be concise, warm, and practical. " +
		"Offer next steps when helpful."

	// TroubleMessage replaces the reply when the endpoint cannot be reached.
	TroubleMessage = "I had trouble reaching the stars. Please try again in a moment."

	maxResponseBytes = 1 << 20
)

type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
	SourceError    Source = "error"
)

var ErrBadStatus = errors.New("chat: unexpected status")

// Reply is the answer to one Send. Err is set only for SourceError.
type Reply struct {
	Text   string
	Source Source
	Err    error
}

// FallbackReply is the canned answer built around the user's last message.
func FallbackReply(userText string) string {
	return `Quick take on "` + userText + `":` + "\n" +
		"• Tarot: try a 3-card spread: past, present, guidance.\n" +
		"• Palm: notice heart, head, life, fate lines balance.\n" +
		"• Face: forehead strategy, eyes empathy, nose drive, mouth expression.\n" +
		"Ground with one clear intention today."
}

type Observer interface {
	ObserveChat(source string)
}

type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
	observer   Observer
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient returns a client for endpoint. With an empty endpoint every Send
// answers with FallbackReply.
func NewClient(endpoint, apiKey, model string, timeout time.Duration, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		endpoint:   strings.TrimSpace(endpoint),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestBody struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
}

// Send asks for the next assistant message. The system prompt is prepended
// to history; any system messages supplied by the caller are dropped.
func (c *Client) Send(ctx context.Context, history []models.ChatMessage) Reply {
	r := c.send(ctx, history)
	if r.Err != nil {
		c.logger.Warn("chat request failed", zap.Error(r.Err))
	}
	if c.observer != nil {
		c.observer.ObserveChat(string(r.Source))
	}
	return r
}

func (c *Client) send(ctx context.Context, history []models.ChatMessage) Reply {
	last := lastContent(history)
	if c.endpoint == "" {
		return Reply{Text: FallbackReply(last), Source: SourceFallback}
	}

	msgs := make([]models.ChatMessage, 0, len(history)+1)
	msgs = append(msgs, models.ChatMessage{Role: models.ChatRoleSystem, Content: SystemPrompt})
	for _, m := range history {
		if m.Role == models.ChatRoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}

	payload, err := json.Marshal(requestBody{Model: c.model, Messages: msgs})
	if err != nil {
		return troubled(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return troubled(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return troubled(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return troubled(fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode))
	}

	text, err := decodeReply(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return troubled(err)
	}
	if text == "" {
		return Reply{Text: FallbackReply(last), Source: SourceFallback}
	}
	return Reply{Text: text, Source: SourceRemote}
}

func troubled(err error) Reply {
	return Reply{Text: TroubleMessage, Source: SourceError, Err: err}
}

func lastContent(history []models.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Content
}

type messageShape struct {
	Content json.RawMessage `json:"content"`
}

// replyShape covers the three accepted bodies: OpenAI style choices, a proxy
// returning {message: {content}} and a bare {content}.
type replyShape struct {
	Choices []struct {
		Message *messageShape `json:"message"`
	} `json:"choices"`
	Message *messageShape   `json:"message"`
	Content json.RawMessage `json:"content"`
}

// decodeReply returns the first non-empty string content in priority order.
// An empty result with a nil error means the body carried no reply.
func decodeReply(r io.Reader) (string, error) {
	var body replyShape
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "", fmt.Errorf("decode chat reply: %w", err)
	}
	if len(body.Choices) > 0 && body.Choices[0].Message != nil {
		if s := stringValue(body.Choices[0].Message.Content); s != "" {
			return s, nil
		}
	}
	if body.Message != nil {
		if s := stringValue(body.Message.Content); s != "" {
			return s, nil
		}
	}
	return stringValue(body.Content), nil
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
