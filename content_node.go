package scribeflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/scribeflow/scribeflow/llm"
	"github.com/scribeflow/scribeflow/prompts"
)

// ContentNodeID is the identifier of the content generation node.
const ContentNodeID = "content_agent"

const (
	contentTemperature = 0.7

	// The prompt asks for 800 to 1200 words. The range is advisory: a
	// response outside it is logged, never failed.
	contentMinWords = 800
	contentMaxWords = 1200
)

// ContentNode writes the blog body for the selected title. It emits the
// body and its word count; designating the final output is left to the
// rest of the workflow.
type ContentNode struct {
	BaseNode
	client llm.TextClient
	logger *slog.Logger
}

// NewContentNode creates the content node.
func NewContentNode(client llm.TextClient) *ContentNode {
	return &ContentNode{
		BaseNode: NewBaseNode(ContentNodeID, NodeKindLLM),
		client:   client,
		logger:   slog.Default(),
	}
}

// WithLogger sets the node's logger and returns the node for chaining.
func (n *ContentNode) WithLogger(logger *slog.Logger) *ContentNode {
	if logger != nil {
		n.logger = logger
	}
	return n
}

// Run generates the blog body in Markdown.
func (n *ContentNode) Run(ctx context.Context, state *BlogState) (*Delta, error) {
	out, err := n.client.Generate(ctx, llm.GenerateRequest{
		System:      prompts.ContentSystem,
		Prompt:      prompts.ContentGeneration(state.SelectedTitle, state.Topic, state.Transcript, state.Style.String()),
		Temperature: contentTemperature,
	})
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(out)
	words := CountWords(body)

	if words < contentMinWords || words > contentMaxWords {
		n.logger.Warn("content length outside requested range",
			slog.String("node", n.ID()),
			slog.Int("words", words),
			slog.Int("min", contentMinWords),
			slog.Int("max", contentMaxWords))
	}

	return new(Delta).
		SetBlogContent(body).
		SetWordCount(words), nil
}

// CountWords counts whitespace-separated tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Ensure interface compliance at compile time.
var _ Node = (*ContentNode)(nil)
