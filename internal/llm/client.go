// Package llm is the HTTP client for the chat-completion provider: model
// listing, vision-capable chat completions, and error classification.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/graphpipe/graphpipe/internal/catalog"
	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/observability"
)

// ErrImageRejected marks a definitive refusal of image content: the
// provider answered 400 and the error message blames the image payload.
// Everything else that fails is treated as inconclusive.
var ErrImageRejected = errors.New("model rejects image content")

// Client talks to an OpenAI-compatible API endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a client for the given endpoint. The timeout bounds a
// single HTTP exchange; per-call deadlines come from the context.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *observability.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithComponent("llm"),
	}
}

// Message represents a chat message.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image).
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatRequest is one chat-completion call.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// Response represents the API response structure.
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice.
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage is the assistant message inside a choice.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image content part as a base64 data URL.
func ImagePart(mimeType string, data []byte) ContentPart {
	encoded := base64.StdEncoding.EncodeToString(data)
	return ContentPart{
		Type:     "image_url",
		ImageURL: &ImageURL{URL: fmt.Sprintf("data:%s;base64,%s", mimeType, encoded)},
	}
}

// ChatCompletion sends one chat-completion request and returns the content
// of the first choice. It makes exactly one attempt; retry policy belongs
// to the caller.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.TransportError("encoding chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", domain.TransportError("building chat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.TransportError("chat completion request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.TransportError("reading chat completion response", err)
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("chat completion")

	if resp.StatusCode != http.StatusOK {
		return "", c.classifyError(resp.StatusCode, respBody)
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", domain.TransportError("decoding chat completion response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.TransportError("chat completion returned no choices", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}

// imageRejectionMarkers are the phrases a 400 error message must contain
// to count as a definitive "this model does not take images" verdict.
var imageRejectionMarkers = []string{"image", "vision", "input type"}

// classifyError turns a non-200 response into a typed error. A 400 whose
// message blames the image payload wraps ErrImageRejected; every other
// failure is a transport error, retryable or not.
func (c *Client) classifyError(status int, body []byte) error {
	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	if status == http.StatusBadRequest {
		lower := strings.ToLower(message)
		for _, marker := range imageRejectionMarkers {
			if strings.Contains(lower, marker) {
				return domain.ValidationError(
					fmt.Sprintf("api returned 400: %s", message), ErrImageRejected)
			}
		}
	}

	return domain.TransportError(fmt.Sprintf("api returned %d: %s", status, message), statusError{status})
}

// statusError carries the HTTP status through the error chain so retry
// logic can distinguish transient codes.
type statusError struct {
	code int
}

func (e statusError) Error() string { return fmt.Sprintf("http status %d", e.code) }

// StatusCode extracts the HTTP status from an error chain, or 0.
func StatusCode(err error) int {
	var se statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

// listingRow mirrors one element of the listing feed's "data" array.
type listingRow struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	ContextLength       int             `json:"context_length"`
	CostContext         decimal.Decimal `json:"cost_context"`
	CostCompletion      decimal.Decimal `json:"cost_completion"`
	Vision              *bool           `json:"vision,omitempty"`
	VisionAuthoritative bool            `json:"vision_authoritative,omitempty"`
}

// ListModels fetches the model listing feed. Rows that fail to decode are
// skipped individually so one malformed entry cannot poison the refresh.
func (c *Client) ListModels(ctx context.Context) ([]catalog.RemoteModel, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, domain.TransportError("building model listing request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.TransportError("model listing request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.TransportError("reading model listing response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyError(resp.StatusCode, body)
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, domain.TransportError("decoding model listing response", err)
	}

	models := make([]catalog.RemoteModel, 0, len(envelope.Data))
	for i, raw := range envelope.Data {
		var row listingRow
		if err := json.Unmarshal(raw, &row); err != nil {
			c.logger.Warn().Int("index", i).Err(err).Msg("skipping malformed listing row")
			continue
		}
		models = append(models, catalog.RemoteModel{
			ID:                  row.ID,
			Title:               row.Title,
			MaxContext:          row.ContextLength,
			CostPerMContext:     row.CostContext,
			CostPerMCompletion:  row.CostCompletion,
			Vision:              row.Vision,
			VisionAuthoritative: row.VisionAuthoritative,
		})
	}

	c.logger.Debug().Int("models", len(models)).Msg("model listing fetched")
	return models, nil
}
