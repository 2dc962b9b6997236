package scribeflow

import (
	"context"
	"log/slog"

	"github.com/scribeflow/scribeflow/llm"
)

// BuildBlogGraph wires the blog generation workflow: title brainstorming,
// content generation, then a conditional hop into translation when a target
// language was requested. The returned graph is validated and immutable.
func BuildBlogGraph(client llm.TextClient, logger *slog.Logger) (*Graph, error) {
	translation := NewTranslationNode(client)

	return NewGraphBuilder().
		AddNode(NewTitleNode(client).WithLogger(logger)).
		Edge(NewContentNode(client).WithLogger(logger)).
		Conditional(TranslationRouter, map[Route]string{
			RouteTranslate: translation.ID(),
			RouteTerminal:  "",
		}).
		WithNodes(translation).
		TerminalNode(translation.ID()).
		Build()
}

// RunWorkflow builds the blog graph and executes a single run. It is a
// convenience for callers that do not need to share a graph or executor
// across runs.
func RunWorkflow(ctx context.Context, client llm.TextClient, logger *slog.Logger, state *BlogState, opts ...ExecutorOption) (*RunResult, error) {
	graph, err := BuildBlogGraph(client, logger)
	if err != nil {
		return nil, err
	}
	return NewExecutor(graph, opts...).Run(ctx, state)
}
