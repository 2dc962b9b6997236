package scribeflow

import (
	"context"
	"strings"

	"github.com/scribeflow/scribeflow/llm"
	"github.com/scribeflow/scribeflow/prompts"
)

// TranslationNodeID is the identifier of the translation node.
const TranslationNodeID = "translation_agent"

const translationTemperature = 0.3

// TranslationNode translates the blog body into the requested language.
// It emits both the translated text and the final output, so a translated
// run's final content is the translation rather than the original body.
type TranslationNode struct {
	BaseNode
	client llm.TextClient
}

// NewTranslationNode creates the translation node.
func NewTranslationNode(client llm.TextClient) *TranslationNode {
	return &TranslationNode{
		BaseNode: NewBaseNode(TranslationNodeID, NodeKindLLM),
		client:   client,
	}
}

// Run translates the generated content.
func (n *TranslationNode) Run(ctx context.Context, state *BlogState) (*Delta, error) {
	out, err := n.client.Generate(ctx, llm.GenerateRequest{
		System:      prompts.TranslationSystem,
		Prompt:      prompts.Translation(state.BlogContent, state.TargetLanguage),
		Temperature: translationTemperature,
	})
	if err != nil {
		return nil, err
	}

	translated := strings.TrimSpace(out)

	return new(Delta).
		SetTranslatedContent(translated).
		SetFinalContent(translated), nil
}

// Ensure interface compliance at compile time.
var _ Node = (*TranslationNode)(nil)
