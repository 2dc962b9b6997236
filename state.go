package scribeflow

import (
	"fmt"
	"strings"
	"time"
)

// Style selects the writing voice for generated content.
type Style string

const (
	StyleProfessional Style = "professional"
	StyleCasual       Style = "casual"
	StyleTechnical    Style = "technical"
	StyleStorytelling Style = "storytelling"
)

// String returns the string representation of the Style.
func (s Style) String() string {
	return string(s)
}

// ParseStyle converts a string to a Style. Empty input yields the
// professional default; anything outside the known set is an error.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return StyleProfessional, nil
	case StyleProfessional:
		return StyleProfessional, nil
	case StyleCasual:
		return StyleCasual, nil
	case StyleTechnical:
		return StyleTechnical, nil
	case StyleStorytelling:
		return StyleStorytelling, nil
	default:
		return "", fmt.Errorf("unknown style %q", s)
	}
}

// BlogState is the single data structure threaded through a workflow run.
// Input fields are set once before execution and never mutated afterwards.
// Working fields are each written by exactly one node. Output fields are
// written by the final node that runs (or by the executor at termination)
// and read only by the caller.
//
// Nodes receive a read-only snapshot and return a Delta; only the executor
// applies deltas, so no node ever observes a partially merged update.
type BlogState struct {
	// Input fields.
	Topic          string
	Transcript     string
	TargetLanguage string
	Style          Style

	// Working fields.
	BrainstormedTitles []string
	SelectedTitle      string
	BlogContent        string
	WordCount          int

	// Output fields.
	TranslatedContent string
	FinalContent      string
	GenerationTime    time.Duration
}

// NewBlogState creates a state with only the input fields populated.
func NewBlogState(topic string) *BlogState {
	return &BlogState{
		Topic: topic,
		Style: StyleProfessional,
	}
}

// WithTranscript sets the optional source transcript.
// This is useful for fluent initialization.
func (s *BlogState) WithTranscript(transcript string) *BlogState {
	s.Transcript = transcript
	return s
}

// WithTargetLanguage sets the optional translation target.
// This is useful for fluent initialization.
func (s *BlogState) WithTargetLanguage(lang string) *BlogState {
	s.TargetLanguage = lang
	return s
}

// WithStyle sets the writing style.
// This is useful for fluent initialization.
func (s *BlogState) WithStyle(style Style) *BlogState {
	s.Style = style
	return s
}

// Translated reports whether the translation node populated its output.
func (s *BlogState) Translated() bool {
	return s.TranslatedContent != ""
}

// Clone creates a copy of the state. The snapshot handed to a node is a
// clone, so a node that mutates its argument cannot leak the change into
// the executor's copy.
func (s *BlogState) Clone() *BlogState {
	if s == nil {
		return nil
	}

	out := *s

	if s.BrainstormedTitles != nil {
		out.BrainstormedTitles = make([]string, len(s.BrainstormedTitles))
		copy(out.BrainstormedTitles, s.BrainstormedTitles)
	}

	return &out
}

// Delta is a partial state update returned by a node. Only fields that were
// explicitly set are applied; the executor merges a delta atomically (all
// fields or, on node failure, none).
type Delta struct {
	brainstormedTitles []string
	selectedTitle      *string
	blogContent        *string
	wordCount          *int
	translatedContent  *string
	finalContent       *string
}

// SetBrainstormedTitles records the candidate title sequence.
func (d *Delta) SetBrainstormedTitles(titles []string) *Delta {
	d.brainstormedTitles = titles
	return d
}

// SetSelectedTitle records the chosen title.
func (d *Delta) SetSelectedTitle(title string) *Delta {
	d.selectedTitle = &title
	return d
}

// SetBlogContent records the generated body text.
func (d *Delta) SetBlogContent(content string) *Delta {
	d.blogContent = &content
	return d
}

// SetWordCount records the body word count.
func (d *Delta) SetWordCount(count int) *Delta {
	d.wordCount = &count
	return d
}

// SetTranslatedContent records the translated body text.
func (d *Delta) SetTranslatedContent(content string) *Delta {
	d.translatedContent = &content
	return d
}

// SetFinalContent records the field designated as final output.
func (d *Delta) SetFinalContent(content string) *Delta {
	d.finalContent = &content
	return d
}

// IsZero reports whether the delta carries no updates.
func (d *Delta) IsZero() bool {
	if d == nil {
		return true
	}
	return d.brainstormedTitles == nil &&
		d.selectedTitle == nil &&
		d.blogContent == nil &&
		d.wordCount == nil &&
		d.translatedContent == nil &&
		d.finalContent == nil
}

// Merge applies a delta to the state. Merge never removes fields and never
// coerces values; a nil delta is a no-op.
func (s *BlogState) Merge(d *Delta) {
	if d == nil {
		return
	}

	if d.brainstormedTitles != nil {
		titles := make([]string, len(d.brainstormedTitles))
		copy(titles, d.brainstormedTitles)
		s.BrainstormedTitles = titles
	}
	if d.selectedTitle != nil {
		s.SelectedTitle = *d.selectedTitle
	}
	if d.blogContent != nil {
		s.BlogContent = *d.blogContent
	}
	if d.wordCount != nil {
		s.WordCount = *d.wordCount
	}
	if d.translatedContent != nil {
		s.TranslatedContent = *d.translatedContent
	}
	if d.finalContent != nil {
		s.FinalContent = *d.finalContent
	}
}
