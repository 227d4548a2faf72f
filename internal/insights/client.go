package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single inference attempt.
const DefaultTimeout = 20 * time.Second

const maxResponseBytes = 1 << 20

type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Result is the outcome of one inference attempt. Insights is never empty:
// when Source is SourceFallback it holds the domain catalog and Err, if set,
// says why the remote answer was not used.
type Result struct {
	Insights    []InsightTemplate
	NeedsRetake bool
	Reason      string
	Source      Source
	Err         error
}

var (
	ErrNotConfigured = errors.New("insights: endpoint not configured")
	ErrBadStatus     = errors.New("insights: unexpected status")
	ErrMalformed     = errors.New("insights: malformed response")
)

// Observer receives one call per Analyze with the chosen source.
type Observer interface {
	ObserveInference(domain string, source string)
}

type Client struct {
	endpoints  map[Domain]string
	httpClient *http.Client
	logger     *zap.Logger
	observer   Observer
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) ClientOption {
	return func(c *Client) { c.observer = o }
}

// NewClient builds a client posting to the given per-domain endpoints. An
// empty endpoint disables the remote call for that domain.
func NewClient(palmEndpoint, faceEndpoint string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		endpoints: map[Domain]string{
			Palm: strings.TrimSpace(palmEndpoint),
			Face: strings.TrimSpace(faceEndpoint),
		},
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether domain has a remote endpoint.
func (c *Client) Configured(domain Domain) bool {
	return c.endpoints[domain] != ""
}

// Analyze uploads image to the domain endpoint. It never fails: any problem
// yields the fallback catalog.
func (c *Client) Analyze(ctx context.Context, domain Domain, image []byte) Result {
	res := c.analyze(ctx, domain, image)
	if res.Err != nil && !errors.Is(res.Err, ErrNotConfigured) {
		c.logger.Warn("inference failed, using fallback",
			zap.String("domain", string(domain)),
			zap.Error(res.Err),
		)
	}
	if c.observer != nil {
		c.observer.ObserveInference(string(domain), string(res.Source))
	}
	return res
}

func (c *Client) analyze(ctx context.Context, domain Domain, image []byte) Result {
	endpoint := c.endpoints[domain]
	if endpoint == "" {
		return fallbackResult(domain, ErrNotConfigured)
	}

	body, contentType, err := multipartImage(string(domain)+".jpg", image)
	if err != nil {
		return fallbackResult(domain, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fallbackResult(domain, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fallbackResult(domain, fmt.Errorf("post %s: %w", domain, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fallbackResult(domain, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode))
	}

	payload, err := decodeResponse(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fallbackResult(domain, err)
	}

	res := Result{Source: SourceRemote}
	if payload.NeedsRetake != nil {
		res.NeedsRetake = *payload.NeedsRetake
	}
	if payload.Reason != nil {
		res.Reason = *payload.Reason
	}
	if len(payload.Insights) == 0 {
		res.Insights = Fallback(domain)
		res.Source = SourceFallback
		return res
	}
	res.Insights = make([]InsightTemplate, 0, len(payload.Insights))
	for _, in := range payload.Insights {
		res.Insights = append(res.Insights, InsightTemplate(in))
	}
	return res
}

func fallbackResult(domain Domain, err error) Result {
	return Result{Insights: Fallback(domain), Source: SourceFallback, Err: err}
}

func multipartImage(filename string, image []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

type inferenceResponse struct {
	Insights    []remoteInsight `json:"insights"`
	NeedsRetake *bool           `json:"needsRetake"`
	Reason      *string         `json:"reason"`
}

type remoteInsight struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Advice  string `json:"advice"`
}

// UnmarshalJSON accepts the id as a string or a number.
func (r *remoteInsight) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      json.RawMessage `json:"id"`
		Title   string          `json:"title"`
		Summary string          `json:"summary"`
		Advice  string          `json:"advice"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := flexibleID(raw.ID)
	if err != nil {
		return err
	}
	*r = remoteInsight{ID: id, Title: raw.Title, Summary: raw.Summary, Advice: raw.Advice}
	return nil
}

func flexibleID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("id must be a string or number, got %s", raw)
}

func decodeResponse(r io.Reader) (inferenceResponse, error) {
	var payload inferenceResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return inferenceResponse{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, in := range payload.Insights {
		if in.ID == "" || strings.TrimSpace(in.Title) == "" ||
			strings.TrimSpace(in.Summary) == "" || strings.TrimSpace(in.Advice) == "" {
			return inferenceResponse{}, fmt.Errorf("%w: insight %d is incomplete", ErrMalformed, i)
		}
	}
	return payload, nil
}
