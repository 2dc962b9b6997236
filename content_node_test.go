package scribeflow

import (
	"context"
	"strings"
	"testing"
)

func TestContentNodeRun(t *testing.T) {
	body := strings.Repeat("word ", 900)
	client := &scriptedClient{responses: []string{body}}

	node := NewContentNode(client)
	state := NewBlogState("go concurrency")
	state.SelectedTitle = "The Ultimate Guide"

	delta, err := node.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	merged := NewBlogState("go concurrency")
	merged.Merge(delta)

	if merged.WordCount != 900 {
		t.Errorf("WordCount = %d, want 900", merged.WordCount)
	}
	if merged.BlogContent != strings.TrimSpace(body) {
		t.Error("BlogContent not trimmed response body")
	}
	if merged.FinalContent != "" {
		t.Errorf("content node set FinalContent = %q, want empty", merged.FinalContent)
	}

	req := client.requests[0]
	if req.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", req.Temperature)
	}
	if !strings.Contains(req.Prompt, "The Ultimate Guide") {
		t.Error("prompt missing selected title")
	}
}

func TestContentNodeShortBodyStillSucceeds(t *testing.T) {
	client := &scriptedClient{responses: []string{"tiny body"}}

	delta, err := NewContentNode(client).Run(context.Background(), NewBlogState("topic"))
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for out-of-range length", err)
	}

	merged := NewBlogState("topic")
	merged.Merge(delta)
	if merged.WordCount != 2 {
		t.Errorf("WordCount = %d, want 2", merged.WordCount)
	}
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two\tthree\nfour", 4},
		{"  padded   spacing  ", 2},
	}

	for _, tt := range tests {
		if got := CountWords(tt.input); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
