// Package intent maps free-form banking requests ("put fifty bucks in my
// account") to a structured action and amount using a chat-completions
// endpoint, with an optional Redis cache in front.
package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/parlabank/backend/internal/models"
)

// Resolver turns a natural-language request into an Intent. Implementations
// return ActionUnknown, never an error, when the text simply is not a banking
// request; errors are reserved for transport failures.
type Resolver interface {
	Resolve(ctx context.Context, text string) (models.Intent, error)
}

const systemPrompt = `You are a banking assistant. Users use natural language ` +
	`to deposit, withdraw, transfer, check their balance, view history, go back ` +
	`to regular prompts (backwards), view their options, or logout. Reply with ` +
	`only "(action,amount)" where action is one of deposit, withdraw, transfer, ` +
	`balance, history, backwards, options, logout and amount is the dollar ` +
	`amount mentioned (0 for actions that take none). If a money action names ` +
	`no amount, use -1. If you are not confident, reply "(unknown,0)".`

var replyPattern = regexp.MustCompile(`\(\s*([a-zA-Z]+)\s*,\s*(-?[0-9]+(?:\.[0-9]+)?)\s*\)`)

// HTTPResolver calls an OpenAI-compatible chat-completions endpoint.
type HTTPResolver struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func NewHTTPResolver(endpoint, apiKey, model string) *HTTPResolver {
	return &HTTPResolver{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 15 * time.Second},
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
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, text string) (models.Intent, error) {
	body, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return models.Intent{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Intent{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return models.Intent{}, fmt.Errorf("intent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return models.Intent{}, fmt.Errorf("intent endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.Intent{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return models.Intent{}, fmt.Errorf("intent endpoint returned no choices")
	}

	return ParseReply(parsed.Choices[0].Message.Content), nil
}

// ParseReply extracts "(action,amount)" from a model reply. Anything that
// does not match, or names an action we do not support, comes back as
// ActionUnknown.
func ParseReply(reply string) models.Intent {
	m := replyPattern.FindStringSubmatch(reply)
	if m == nil {
		return models.Intent{Action: models.ActionUnknown, Amount: models.AmountUnspecified}
	}

	amount, err := strconv.ParseFloat(m[2], 64)
	if err != nil || amount < 0 {
		amount = models.AmountUnspecified
	}

	action := models.IntentAction(strings.ToLower(m[1]))
	if !models.KnownAction(action) {
		action = models.ActionUnknown
	}
	if action == models.ActionUnknown {
		amount = models.AmountUnspecified
	}
	return models.Intent{Action: action, Amount: amount}
}

// Disabled is the resolver used when no endpoint is configured. Every
// request resolves to ActionUnknown, so sessions fall back to asking the
// user to rephrase or use the menu.
type Disabled struct{}

func (Disabled) Resolve(ctx context.Context, text string) (models.Intent, error) {
	return models.Intent{Action: models.ActionUnknown, Amount: models.AmountUnspecified}, nil
}
