package scribeflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func collectEvents(events *[]Event) EventHandler {
	return func(e Event) {
		*events = append(*events, e)
	}
}

func TestExecutorRunSequential(t *testing.T) {
	g := NewGraphBuilder().
		AddNode(NewFuncNode("first", func(ctx context.Context, state *BlogState) (*Delta, error) {
			return new(Delta).SetSelectedTitle("picked"), nil
		})).
		Edge(NewFuncNode("second", func(ctx context.Context, state *BlogState) (*Delta, error) {
			if state.SelectedTitle != "picked" {
				t.Errorf("second node saw SelectedTitle = %q, want %q", state.SelectedTitle, "picked")
			}
			return new(Delta).SetBlogContent("body").SetWordCount(1), nil
		})).
		TerminalNode("second").
		MustBuild()

	var events []Event
	x := NewExecutor(g,
		WithEventHandler(collectEvents(&events)),
		WithRunIDFunc(func() string { return "run-1" }),
	)

	result, err := x.Run(context.Background(), NewBlogState("topic"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Status != RunStatusSucceeded {
		t.Errorf("Status = %v, want %v", result.Status, RunStatusSucceeded)
	}
	if result.RunID != "run-1" {
		t.Errorf("RunID = %q, want %q", result.RunID, "run-1")
	}
	wantPath := []string{"first", "second"}
	if len(result.Path) != 2 || result.Path[0] != wantPath[0] || result.Path[1] != wantPath[1] {
		t.Errorf("Path = %v, want %v", result.Path, wantPath)
	}
	if result.State.BlogContent != "body" {
		t.Errorf("BlogContent = %q, want %q", result.State.BlogContent, "body")
	}

	wantKinds := []EventKind{
		EventRunStarted,
		EventNodeStarted, EventNodeFinished,
		EventNodeStarted, EventNodeFinished,
		EventRunFinished,
	}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantKinds), events)
	}
	for i, kind := range wantKinds {
		if events[i].Kind != kind {
			t.Errorf("events[%d].Kind = %v, want %v", i, events[i].Kind, kind)
		}
		if events[i].Seq != uint64(i+1) {
			t.Errorf("events[%d].Seq = %d, want %d", i, events[i].Seq, i+1)
		}
		if events[i].RunID != "run-1" {
			t.Errorf("events[%d].RunID = %q, want run-1", i, events[i].RunID)
		}
	}
}

func TestExecutorDoesNotMutateInput(t *testing.T) {
	g := NewGraphBuilder().
		AddNode(NewFuncNode("only", func(ctx context.Context, state *BlogState) (*Delta, error) {
			return new(Delta).SetBlogContent("body"), nil
		})).
		TerminalNode("only").
		MustBuild()

	input := NewBlogState("topic")
	if _, err := NewExecutor(g).Run(context.Background(), input); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if input.BlogContent != "" {
		t.Errorf("executor mutated caller's state: BlogContent = %q", input.BlogContent)
	}
}

func TestExecutorFailedNodeDiscardsDelta(t *testing.T) {
	boom := errors.New("boom")
	g := NewGraphBuilder().
		AddNode(NewFuncNode("good", func(ctx context.Context, state *BlogState) (*Delta, error) {
			return new(Delta).SetSelectedTitle("kept"), nil
		})).
		Edge(NewFuncNode("bad", func(ctx context.Context, state *BlogState) (*Delta, error) {
			return new(Delta).SetBlogContent("must not merge"), boom
		})).
		TerminalNode("bad").
		MustBuild()

	var events []Event
	result, err := NewExecutor(g, WithEventHandler(collectEvents(&events))).
		Run(context.Background(), NewBlogState("topic"))

	if !errors.Is(err, ErrNodeExecution) {
		t.Fatalf("Run() error = %v, want ErrNodeExecution", err)
	}
	if result.Status != RunStatusFailed {
		t.Errorf("Status = %v, want %v", result.Status, RunStatusFailed)
	}
	if result.State.SelectedTitle != "kept" {
		t.Errorf("earlier merge lost, SelectedTitle = %q", result.State.SelectedTitle)
	}
	if result.State.BlogContent != "" {
		t.Errorf("failed node's delta merged, BlogContent = %q", result.State.BlogContent)
	}

	last := events[len(events)-1]
	if last.Kind != EventRunFinished {
		t.Fatalf("last event = %v, want %v", last.Kind, EventRunFinished)
	}
	if last.Payload["status"] != RunStatusFailed.String() {
		t.Errorf("finish payload status = %v, want failed", last.Payload["status"])
	}
}

func TestExecutorCanceledContext(t *testing.T) {
	g := NewGraphBuilder().
		AddNode(NewFuncNode("only", func(ctx context.Context, state *BlogState) (*Delta, error) {
			return new(Delta).SetBlogContent("never"), nil
		})).
		TerminalNode("only").
		MustBuild()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewExecutor(g).Run(ctx, NewBlogState("topic"))
	if !errors.Is(err, ErrRunCanceled) {
		t.Fatalf("Run() error = %v, want ErrRunCanceled", err)
	}
	if result.Status != RunStatusCanceled {
		t.Errorf("Status = %v, want %v", result.Status, RunStatusCanceled)
	}
	if len(result.Path) != 0 {
		t.Errorf("Path = %v, want empty", result.Path)
	}
}

func TestExecutorCancelDuringNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	g := NewGraphBuilder().
		AddNode(NewFuncNode("slow", func(ctx context.Context, state *BlogState) (*Delta, error) {
			cancel()
			return nil, ctx.Err()
		})).
		TerminalNode("slow").
		MustBuild()

	result, err := NewExecutor(g).Run(ctx, NewBlogState("topic"))
	if !errors.Is(err, ErrRunCanceled) {
		t.Fatalf("Run() error = %v, want ErrRunCanceled", err)
	}
	if result.Status != RunStatusCanceled {
		t.Errorf("Status = %v, want %v", result.Status, RunStatusCanceled)
	}
}

func TestExecutorDefaultsFinalContent(t *testing.T) {
	g := NewGraphBuilder().
		AddNode(NewFuncNode("content", func(ctx context.Context, state *BlogState) (*Delta, error) {
			return new(Delta).SetBlogContent("original body"), nil
		})).
		TerminalNode("content").
		MustBuild()

	result, err := NewExecutor(g).Run(context.Background(), NewBlogState("topic"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State.FinalContent != "original body" {
		t.Errorf("FinalContent = %q, want the blog body", result.State.FinalContent)
	}
}

func TestExecutorKeepsExplicitFinalContent(t *testing.T) {
	g := NewGraphBuilder().
		AddNode(NewFuncNode("content", func(ctx context.Context, state *BlogState) (*Delta, error) {
			return new(Delta).SetBlogContent("original"), nil
		})).
		Edge(NewFuncNode("translate", func(ctx context.Context, state *BlogState) (*Delta, error) {
			return new(Delta).SetTranslatedContent("traducido").SetFinalContent("traducido"), nil
		})).
		TerminalNode("translate").
		MustBuild()

	result, err := NewExecutor(g).Run(context.Background(), NewBlogState("topic"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State.FinalContent != "traducido" {
		t.Errorf("FinalContent = %q, want %q", result.State.FinalContent, "traducido")
	}
}

func TestExecutorSetsGenerationTime(t *testing.T) {
	g := NewGraphBuilder().
		AddNode(noopNode("only")).
		TerminalNode("only").
		MustBuild()

	base := time.Unix(1700000000, 0)
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 100 * time.Millisecond)
	}

	result, err := NewExecutor(g, WithClock(clock)).Run(context.Background(), NewBlogState("topic"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State.GenerationTime <= 0 {
		t.Errorf("GenerationTime = %v, want positive", result.State.GenerationTime)
	}
}

func TestExecutorNilState(t *testing.T) {
	g := NewGraphBuilder().
		AddNode(noopNode("only")).
		TerminalNode("only").
		MustBuild()

	if _, err := NewExecutor(g).Run(context.Background(), nil); !errors.Is(err, ErrNilInitialState) {
		t.Errorf("Run(nil) error = %v, want ErrNilInitialState", err)
	}
}

func TestExecutorRouteDecisionEvent(t *testing.T) {
	g := NewGraphBuilder().
		AddNode(noopNode("content")).
		Conditional(TranslationRouter, map[Route]string{
			RouteTranslate: "translate",
			RouteTerminal:  "",
		}).
		WithNodes(noopNode("translate")).
		TerminalNode("translate").
		MustBuild()

	var events []Event
	_, err := NewExecutor(g, WithEventHandler(collectEvents(&events))).
		Run(context.Background(), NewBlogState("topic").WithTargetLanguage("German"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var decision *Event
	for i := range events {
		if events[i].Kind == EventRouteDecision {
			decision = &events[i]
			break
		}
	}
	if decision == nil {
		t.Fatal("no route_decision event emitted")
	}
	if decision.Payload["route"] != RouteTranslate.String() {
		t.Errorf("decision route = %v, want translate", decision.Payload["route"])
	}
	if decision.Payload["target"] != "translate" {
		t.Errorf("decision target = %v, want translate", decision.Payload["target"])
	}
}
