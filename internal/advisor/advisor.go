// Package advisor asks a hosted Gemini model for short hiking advice. It
// never fails: any problem turns into a fallback reply.
package advisor

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

	"backend-hikepal/internal/logger"
	"backend-hikepal/internal/shared/geo"

	"go.uber.org/zap"
)

const (
	FallbackEmpty   = "Sorry, I couldn't get a clear signal on that."
	FallbackOffline = "I'm having trouble connecting to the network. Please check your signal."

	requestTimeout = 15 * time.Second
	apiKeyHeader   = "x-goog-api-key"
)

var errNoAPIKey = errors.New("gemini api key not configured")

// Context is what the hiker's situation looks like when they ask.
type Context struct {
	Location  geo.Position
	RouteName string
	Teammates []string
}

// LocationString renders the position as "Lat: x, Lng: y".
func (c Context) LocationString() string {
	return fmt.Sprintf("Lat: %.4f, Lng: %.4f", c.Location.Lat, c.Location.Lng)
}

type Client struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = logger.OrNop(l).Named("advisor")
	}
}

func New(apiKey, model, baseURL string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: requestTimeout},
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction content   `json:"system_instruction"`
	Contents          []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateAdvice answers message with the hiker's context. It returns a
// fallback string instead of an error.
func (c *Client) GenerateAdvice(ctx context.Context, message string, hc Context) string {
	if c == nil {
		return FallbackOffline
	}
	text, err := c.generate(ctx, message, hc)
	if err != nil {
		c.log.Warn("advice request failed", zap.Error(err))
		return FallbackOffline
	}
	if strings.TrimSpace(text) == "" {
		return FallbackEmpty
	}
	return text
}

func (c *Client) generate(ctx context.Context, message string, hc Context) (string, error) {
	if c.apiKey == "" {
		return "", errNoAPIKey
	}

	body, err := json.Marshal(generateRequest{
		SystemInstruction: content{Parts: []part{{Text: systemInstruction(hc)}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: message}}}},
	})
	if err != nil {
		return "", err
	}

	// transport errors quote the URL, so the key goes in a header
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-200 response: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func systemInstruction(hc Context) string {
	teammates := "no one"
	if len(hc.Teammates) > 0 {
		teammates = strings.Join(hc.Teammates, ", ")
	}
	return fmt.Sprintf(`You are HikePal AI, an expert hiking guide for Hong Kong trails.
Current User Context:
- Location: %s
- Route: %s
- Team status: Hiking with %s

Provide concise, helpful safety and navigation advice.
If asked about toilets, water, or exit points (bailouts), be specific to the %s area.
Keep responses short (under 100 words) as the user is currently hiking.`,
		hc.LocationString(), hc.RouteName, teammates, hc.RouteName)
}
