package scribeflow

import (
	"context"
	"strings"
	"testing"
)

func blogWorkflowClient(translated bool) *scriptedClient {
	body := strings.Repeat("word ", 850)
	responses := []string{
		fiveTitles,
		"The Ultimate Guide to Channels and Select",
		body,
	}
	if translated {
		responses = append(responses, "cuerpo traducido")
	}
	return &scriptedClient{responses: responses}
}

func TestRunWorkflowWithoutTranslation(t *testing.T) {
	client := blogWorkflowClient(false)

	result, err := RunWorkflow(context.Background(), client, nil, NewBlogState("go concurrency"))
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}

	if result.Status != RunStatusSucceeded {
		t.Fatalf("Status = %v, want succeeded", result.Status)
	}
	wantPath := []string{TitleNodeID, ContentNodeID}
	if len(result.Path) != len(wantPath) {
		t.Fatalf("Path = %v, want %v", result.Path, wantPath)
	}
	for i := range wantPath {
		if result.Path[i] != wantPath[i] {
			t.Fatalf("Path = %v, want %v", result.Path, wantPath)
		}
	}

	state := result.State
	if state.Translated() {
		t.Error("Translated() = true, want false")
	}
	if state.FinalContent != state.BlogContent {
		t.Error("FinalContent does not default to the blog body")
	}
	if state.WordCount != 850 {
		t.Errorf("WordCount = %d, want 850", state.WordCount)
	}
	if state.GenerationTime <= 0 {
		t.Errorf("GenerationTime = %v, want positive", state.GenerationTime)
	}
	if client.calls != 3 {
		t.Errorf("client calls = %d, want 3", client.calls)
	}
}

func TestRunWorkflowWithTranslation(t *testing.T) {
	client := blogWorkflowClient(true)

	state := NewBlogState("go concurrency").WithTargetLanguage("Spanish")
	result, err := RunWorkflow(context.Background(), client, nil, state)
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}

	if result.Status != RunStatusSucceeded {
		t.Fatalf("Status = %v, want succeeded", result.Status)
	}
	wantPath := []string{TitleNodeID, ContentNodeID, TranslationNodeID}
	if len(result.Path) != len(wantPath) {
		t.Fatalf("Path = %v, want %v", result.Path, wantPath)
	}

	final := result.State
	if !final.Translated() {
		t.Error("Translated() = false, want true")
	}
	if final.FinalContent != "cuerpo traducido" {
		t.Errorf("FinalContent = %q, want the translation", final.FinalContent)
	}
	if final.BlogContent == final.FinalContent {
		t.Error("translation overwrote the original body")
	}
}

func TestRunWorkflowWhitespaceLanguageSkipsTranslation(t *testing.T) {
	client := blogWorkflowClient(false)

	state := NewBlogState("go concurrency").WithTargetLanguage("   ")
	result, err := RunWorkflow(context.Background(), client, nil, state)
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}
	if len(result.Path) != 2 {
		t.Errorf("Path = %v, want two nodes", result.Path)
	}
}

func TestBuildBlogGraphValidates(t *testing.T) {
	g, err := BuildBlogGraph(&scriptedClient{}, nil)
	if err != nil {
		t.Fatalf("BuildBlogGraph() error = %v", err)
	}
	if g.EntryID() != TitleNodeID {
		t.Errorf("EntryID() = %q, want %q", g.EntryID(), TitleNodeID)
	}
	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
}
