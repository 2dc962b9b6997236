package prompts

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTitleGenerationTranscriptHandling(t *testing.T) {
	withTranscript := TitleGeneration("topic", "some transcript", "casual")
	if !strings.Contains(withTranscript, "SOURCE TRANSCRIPT:") {
		t.Error("prompt with transcript missing transcript section")
	}

	without := TitleGeneration("topic", "   ", "casual")
	if !strings.Contains(without, "No transcript provided") {
		t.Error("prompt without transcript missing fallback section")
	}
	if !strings.Contains(without, "WRITING STYLE: casual") {
		t.Error("prompt missing style")
	}
}

func TestTitleGenerationTruncatesTranscript(t *testing.T) {
	long := strings.Repeat("x", TitleTranscriptLimit*2)
	got := TitleGeneration("topic", long, "casual")
	if strings.Contains(got, long) {
		t.Error("transcript was not truncated")
	}
	if !strings.Contains(got, strings.Repeat("x", TitleTranscriptLimit)+"...") {
		t.Error("truncated transcript missing ellipsis marker")
	}
}

func TestTitleGenerationTruncatesAtRuneBoundary(t *testing.T) {
	// Multi-byte runes around the cap must not be split mid-sequence.
	long := strings.Repeat("日本語のテキスト", TitleTranscriptLimit)
	got := TitleGeneration("topic", long, "casual")
	if !utf8.ValidString(got) {
		t.Error("prompt contains invalid UTF-8 after truncation")
	}
	if !strings.Contains(got, strings.Repeat("日本語のテキスト", TitleTranscriptLimit/8)+"...") {
		t.Error("transcript not capped at the character limit")
	}
}

func TestTitleSelectionNumbersCandidates(t *testing.T) {
	got := TitleSelection([]string{"First", "Second"}, "topic", "professional")
	if !strings.Contains(got, "1. First\n2. Second") {
		t.Errorf("candidates not numbered:\n%s", got)
	}
}

func TestContentGenerationSections(t *testing.T) {
	got := ContentGeneration("Title", "topic", "transcript text", "technical")
	if !strings.Contains(got, "TRANSCRIPT TO REFERENCE:") {
		t.Error("prompt missing transcript section")
	}
	if !strings.Contains(got, "TITLE: Title") {
		t.Error("prompt missing title")
	}
	if !strings.Contains(got, `Style Guidelines based on "technical"`) {
		t.Error("prompt missing style guidelines")
	}

	noTranscript := ContentGeneration("Title", "topic", "", "casual")
	if !strings.Contains(noTranscript, "No source transcript provided") {
		t.Error("prompt missing no-transcript note")
	}
}

func TestContentGenerationTruncatesTranscript(t *testing.T) {
	long := strings.Repeat("y", ContentTranscriptLimit+100)
	got := ContentGeneration("Title", "topic", long, "casual")
	if strings.Contains(got, long) {
		t.Error("transcript was not truncated")
	}
}

func TestTranslationPrompt(t *testing.T) {
	got := Translation("## Heading\nbody", "Japanese")
	if !strings.Contains(got, "into Japanese") {
		t.Error("prompt missing target language")
	}
	if !strings.Contains(got, "## Heading\nbody") {
		t.Error("prompt missing source content")
	}
}
