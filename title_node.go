package scribeflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/scribeflow/scribeflow/llm"
	"github.com/scribeflow/scribeflow/prompts"
)

// TitleNodeID is the identifier of the title brainstorming node.
const TitleNodeID = "title_agent"

const (
	titleTemperature = 0.8
	titleCandidates  = 5
)

// TitleNode brainstorms candidate titles for the topic and selects the best
// one. It makes two upstream calls: one to generate exactly five numbered
// candidates, one to pick among them. A selection that is not one of the
// candidates is a contract violation and fails the node.
type TitleNode struct {
	BaseNode
	client llm.TextClient
	logger *slog.Logger
}

// NewTitleNode creates the title node.
func NewTitleNode(client llm.TextClient) *TitleNode {
	return &TitleNode{
		BaseNode: NewBaseNode(TitleNodeID, NodeKindLLM),
		client:   client,
		logger:   slog.Default(),
	}
}

// WithLogger sets the node's logger and returns the node for chaining.
func (n *TitleNode) WithLogger(logger *slog.Logger) *TitleNode {
	if logger != nil {
		n.logger = logger
	}
	return n
}

// Run generates five candidate titles and selects one.
func (n *TitleNode) Run(ctx context.Context, state *BlogState) (*Delta, error) {
	genOut, err := n.client.Generate(ctx, llm.GenerateRequest{
		System:      prompts.TitleSystem,
		Prompt:      prompts.TitleGeneration(state.Topic, state.Transcript, state.Style.String()),
		Temperature: titleTemperature,
	})
	if err != nil {
		return nil, err
	}

	titles := parseNumberedTitles(genOut)
	if len(titles) != titleCandidates {
		return nil, NewContractViolation(n.ID(),
			"expected %d candidate titles, parsed %d", titleCandidates, len(titles))
	}

	selOut, err := n.client.Generate(ctx, llm.GenerateRequest{
		System:      prompts.TitleSystem,
		Prompt:      prompts.TitleSelection(titles, state.Topic, state.Style.String()),
		Temperature: titleTemperature,
	})
	if err != nil {
		return nil, err
	}

	selected := strings.TrimSpace(selOut)
	if !containsTitle(titles, selected) {
		return nil, NewContractViolation(n.ID(),
			"selected title %q is not among the candidates", selected)
	}

	n.logger.Debug("title selected",
		slog.String("node", n.ID()),
		slog.String("title", selected))

	return new(Delta).
		SetBrainstormedTitles(titles).
		SetSelectedTitle(selected), nil
}

// parseNumberedTitles extracts titles from a numbered list, one per line.
// Lines that do not start with a digit are ignored; duplicates are dropped
// so a repeated candidate cannot satisfy the five-title requirement.
func parseNumberedTitles(raw string) []string {
	var titles []string
	seen := map[string]bool{}

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !unicode.IsDigit(rune(line[0])) {
			continue
		}

		title := line
		if _, rest, ok := strings.Cut(title, "."); ok {
			title = rest
		}
		if _, rest, ok := strings.Cut(title, ")"); ok {
			title = rest
		}
		title = strings.TrimSpace(title)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}
	return titles
}

func containsTitle(titles []string, want string) bool {
	for _, t := range titles {
		if t == want {
			return true
		}
	}
	return false
}

// Ensure interface compliance at compile time.
var _ Node = (*TitleNode)(nil)
