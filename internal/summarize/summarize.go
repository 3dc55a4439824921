// Package summarize generates a markdown summary of a transcript via the
// OpenAI chat completions API.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// DefaultSystemPrompt is used when no custom prompt is configured.
const DefaultSystemPrompt = `You are summarizing a verbatim transcript from an audio recording.

First, read the full transcript carefully.

Then produce a concise, structured summary with the sections below.

Use clear language.
Avoid filler.
Do not invent facts.
If something is unclear, note it.

Output format (markdown):

## Summary
- 5-8 bullets capturing the core points

## Decisions
- List explicit decisions made
- If none, write "No explicit decisions recorded"

## Action Items
- Bullet list
- Include owner and due date if stated
- If missing, note "owner not specified" or "no due date stated"

## Open Questions
- Items that were raised but not resolved
- If none, write "No open questions"

## Key Quotes (optional)
- 2-4 short quotes only if they clarify intent or tone

Important rules:
- Base everything strictly on the transcript
- Do not infer beyond what was said
- Preserve intent, not wording`

// Client calls the completion API. BaseURL and HTTPClient exist for tests.
type Client struct {
	APIKey       string
	SystemPrompt string
	BaseURL      string
	HTTPClient   *http.Client
}

// APIError is a non-2xx response. Rate limits and server errors are
// transient and worth retrying.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API error (HTTP %d): %s", e.StatusCode, e.Body)
}

func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// networkError wraps transport-level failures, which are also retryable.
type networkError struct {
	err error
}

func (e *networkError) Error() string   { return "calling completion API: " + e.err.Error() }
func (e *networkError) Unwrap() error   { return e.err }
func (e *networkError) Transient() bool { return true }

// Summarize sends the transcript and returns the summary markdown.
func (c *Client) Summarize(ctx context.Context, transcriptText, model string) (string, error) {
	if transcriptText == "" {
		return "", fmt.Errorf("transcript is empty, nothing to summarize")
	}

	prompt := c.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: "Summarize the following transcript:\n\n" + transcriptText},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &networkError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &networkError{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing completion response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	summary := apiResp.Choices[0].Message.Content
	if summary == "" {
		return "", fmt.Errorf("completion response is empty")
	}
	return summary, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
