package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	apperrors "go-medical-image-analyzer/internal/errors"
)

// Querier issues one question-plus-image query against a single remote
// vision model
type Querier interface {
	// Ready reports a configuration problem that should abort a run
	// before any network call, such as a missing credential
	Ready() error

	// Query sends the question and the base64-encoded image to the given
	// model and returns its answer text
	Query(ctx context.Context, modelID, question, encodedImage string) (string, error)
}

// The upstream API accepts image payloads only as a JPEG data URI,
// whatever the decoded format of the bytes actually is.
const dataURIPrefix = "data:image/jpeg;base64,"

// EncodeImage converts validated image bytes into the base64 form
// Query expects
func EncodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// GroqClient implements Querier against Groq's OpenAI-compatible chat
// completions endpoint
type GroqClient struct {
	client *openai.Client
	apiKey string
}

// NewGroqClient creates a client for the given endpoint. timeout bounds
// each model request; an expired request surfaces as a transport failure
// for that model only.
func NewGroqClient(apiKey, baseURL string, timeout time.Duration) *GroqClient {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &GroqClient{
		client: openai.NewClientWithConfig(clientConfig),
		apiKey: apiKey,
	}
}

// Ready implements Querier
func (c *GroqClient) Ready() error {
	if strings.TrimSpace(c.apiKey) == "" {
		return apperrors.NewConfigurationError("GROQ_API_KEY not found in environment variables")
	}
	return nil
}

// Query implements Querier. Every upstream failure is converted to a
// typed error; nothing panics or leaks library errors past this point.
func (c *GroqClient) Query(ctx context.Context, modelID, question, encodedImage string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: question,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURIPrefix + encodedImage,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", classifyQueryError(modelID, err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.NewMalformedResponseError(
			fmt.Sprintf("model %s returned no choices", modelID), nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyQueryError maps client library errors onto the result-slot
// error kinds: an HTTP error response keeps its body text, anything
// that never produced a response becomes a generic transport failure.
func classifyQueryError(modelID string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.NewUpstreamError(
			fmt.Sprintf("model %s returned status %d", modelID, apiErr.HTTPStatusCode),
			apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperrors.NewUpstreamError(
			fmt.Sprintf("model %s returned status %d", modelID, reqErr.HTTPStatusCode),
			string(reqErr.Body))
	}

	return apperrors.NewTransportError("request failed", err)
}
