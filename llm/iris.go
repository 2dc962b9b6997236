package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	iriscore "github.com/petal-labs/iris/core"
	"github.com/petal-labs/iris/providers"
	// Auto-register common providers.
	_ "github.com/petal-labs/iris/providers/anthropic"
	_ "github.com/petal-labs/iris/providers/ollama"
	_ "github.com/petal-labs/iris/providers/openai"
)

// IrisClient is a TextClient backed by an iris provider.
type IrisClient struct {
	provider iriscore.Provider
	model    iriscore.ModelID
}

// NewIrisClient creates a client for the named provider and model. The
// provider is instantiated through the iris registry, so the name must be
// one of the registered providers.
func NewIrisClient(providerName, apiKey, model string) (*IrisClient, error) {
	provider, err := providers.Create(providerName, apiKey)
	if err != nil {
		return nil, fmt.Errorf("creating provider %q: %w", providerName, err)
	}
	return &IrisClient{
		provider: provider,
		model:    iriscore.ModelID(model),
	}, nil
}

// NewIrisClientFromProvider wraps an already constructed iris provider.
func NewIrisClientFromProvider(provider iriscore.Provider, model string) *IrisClient {
	return &IrisClient{
		provider: provider,
		model:    iriscore.ModelID(model),
	}
}

// ProviderID returns the underlying provider's identifier.
func (c *IrisClient) ProviderID() string {
	return c.provider.ID()
}

// Generate sends a single-turn chat request and returns the text output.
// Provider failures are classified: context errors and provider outages
// are transient, everything else is rejected. An empty output is a
// malformed response.
func (c *IrisClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	messages := make([]iriscore.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, iriscore.Message{
			Role:    iriscore.RoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, iriscore.Message{
		Role:    iriscore.RoleUser,
		Content: req.Prompt,
	})

	chatReq := &iriscore.ChatRequest{
		Model:    c.model,
		Messages: messages,
	}
	temp := req.Temperature
	chatReq.Temperature = &temp
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		chatReq.MaxTokens = &maxTokens
	}

	resp, err := c.provider.Chat(ctx, chatReq)
	if err != nil {
		return "", NewServiceError(classify(err), "generate", err)
	}

	if strings.TrimSpace(resp.Output) == "" {
		return "", NewServiceError(KindMalformedResponse, "generate",
			errors.New("provider returned empty output"))
	}

	return resp.Output, nil
}

// classify maps a provider error to an ErrorKind. Anything that looks like
// a timeout, cancellation, or upstream overload is transient; the rest is
// rejected since retrying an invalid request only repeats the failure.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"temporarily",
		"overloaded",
		"rate limit",
		"too many requests",
		"connection refused",
		"connection reset",
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 529",
	} {
		if strings.Contains(msg, marker) {
			return KindTransient
		}
	}
	return KindRejected
}

// Compile-time interface check.
var _ TextClient = (*IrisClient)(nil)
