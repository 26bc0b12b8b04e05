package model

import (
	"context"
	"errors"
	"fmt"
)

// Fixed call parameters for every turn.
const (
	DefaultTemperature     = 0.1
	DefaultMaxInputTokens  = 20000
	DefaultMaxOutputTokens = 20000
)

// Request is a single prompt sent to a model provider.
type Request struct {
	Model           string
	Prompt          string
	Temperature     float64
	MaxInputTokens  int
	MaxOutputTokens int
}

// NewRequest builds a Request with the fixed call parameters.
func NewRequest(modelID, prompt string) Request {
	return Request{
		Model:           modelID,
		Prompt:          prompt,
		Temperature:     DefaultTemperature,
		MaxInputTokens:  DefaultMaxInputTokens,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// Response is the common response model for model providers.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Provider is the model provider abstraction used by the chat orchestrator.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// UpstreamError reports a failed model call. Class is a short machine
// readable label such as "http_status" or "transport".
type UpstreamError struct {
	Provider string
	Class    string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error class=%s: %v", e.Provider, e.Class, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ErrPromptTooLarge is wrapped in an UpstreamError when a prompt is rejected
// before it is sent because it cannot fit the input token budget.
var ErrPromptTooLarge = errors.New("prompt exceeds input token budget")

// EstimateTokens approximates the token count of s at four bytes per token.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// CheckInputBudget returns ErrPromptTooLarge when the estimated prompt size
// exceeds req.MaxInputTokens. A non-positive budget disables the check.
func CheckInputBudget(req Request) error {
	if req.MaxInputTokens <= 0 {
		return nil
	}
	if n := EstimateTokens(req.Prompt); n > req.MaxInputTokens {
		return fmt.Errorf("%w: estimated=%d max=%d", ErrPromptTooLarge, n, req.MaxInputTokens)
	}
	return nil
}
