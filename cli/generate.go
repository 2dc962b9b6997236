package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	scribeflow "github.com/scribeflow/scribeflow"
)

// Exit codes returned through ExitError.
const (
	exitSuccess    = 0
	exitValidation = 1
	exitRuntime    = 2
	exitInputParse = 4
	exitProvider   = 5
	exitTimeout    = 10
)

// NewGenerateCmd creates the "generate" subcommand.
func NewGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate a blog post for a topic",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}

	cmd.Flags().StringP("transcript-file", "f", "", "File with source material to ground the post")
	cmd.Flags().StringP("language", "l", "", "Translate the post into this language")
	cmd.Flags().StringP("style", "s", "", "Writing style: professional | casual | technical | storytelling")
	cmd.Flags().StringP("output", "o", "", "Write the result to a file (default: stdout)")
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Duration("timeout", 5*time.Minute, "Generation timeout")
	cmd.Flags().String("config", "", "Path to scribeflow.yaml config")
	cmd.Flags().Bool("events", false, "Print workflow events to stderr as they happen")

	return cmd
}

// generateOutput is the JSON shape printed with --format json.
type generateOutput struct {
	RunID                 string   `json:"run_id"`
	Title                 string   `json:"title"`
	Content               string   `json:"content"`
	WordCount             int      `json:"word_count"`
	GenerationTimeSeconds float64  `json:"generation_time_seconds"`
	WasTranslated         bool     `json:"was_translated"`
	TargetLanguage        string   `json:"target_language,omitempty"`
	BrainstormedTitles    []string `json:"brainstormed_titles"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(args[0])
	if len([]rune(topic)) < 3 {
		return exitError(exitValidation, "topic must be at least 3 characters")
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return exitError(exitValidation, "unknown format %q: use text or json", format)
	}

	styleFlag, _ := cmd.Flags().GetString("style")
	style, err := scribeflow.ParseStyle(styleFlag)
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return exitError(exitInputParse, "loading config: %v", err)
	}
	client, err := buildTextClient(cfg)
	if err != nil {
		return exitError(exitProvider, "configuring provider: %v", err)
	}

	state := scribeflow.NewBlogState(topic).WithStyle(style)
	if language, _ := cmd.Flags().GetString("language"); language != "" {
		state = state.WithTargetLanguage(language)
	}
	if transcriptFile, _ := cmd.Flags().GetString("transcript-file"); transcriptFile != "" {
		raw, err := os.ReadFile(transcriptFile) // #nosec G304 -- path from user CLI arg
		if err != nil {
			return exitError(exitInputParse, "reading transcript: %v", err)
		}
		state = state.WithTranscript(string(raw))
	}

	var opts []scribeflow.ExecutorOption
	if printEvents, _ := cmd.Flags().GetBool("events"); printEvents {
		opts = append(opts, scribeflow.WithEventHandler(eventPrinter(cmd.ErrOrStderr())))
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	result, err := scribeflow.RunWorkflow(ctx, client, nil, state, opts...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return exitError(exitTimeout, "generation timed out after %s", timeout)
		}
		if result != nil && len(result.Path) > 0 {
			return exitError(exitRuntime, "node %q failed: %v", result.Path[len(result.Path)-1], err)
		}
		return exitError(exitRuntime, "generation failed: %v", err)
	}

	out := cmd.OutOrStdout()
	if outputPath, _ := cmd.Flags().GetString("output"); outputPath != "" {
		file, err := os.Create(outputPath) // #nosec G304 -- path from user CLI arg
		if err != nil {
			return exitError(exitRuntime, "creating output file: %v", err)
		}
		defer file.Close()
		out = file
	}

	if format == "json" {
		return writeGenerateJSON(out, result)
	}
	writeGenerateText(out, result)
	return nil
}

func writeGenerateJSON(w io.Writer, result *scribeflow.RunResult) error {
	state := result.State
	payload := generateOutput{
		RunID:                 result.RunID,
		Title:                 state.SelectedTitle,
		Content:               state.FinalContent,
		WordCount:             state.WordCount,
		GenerationTimeSeconds: state.GenerationTime.Seconds(),
		WasTranslated:         state.Translated(),
		TargetLanguage:        state.TargetLanguage,
		BrainstormedTitles:    state.BrainstormedTitles,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func writeGenerateText(w io.Writer, result *scribeflow.RunResult) {
	state := result.State
	fmt.Fprintf(w, "# %s\n\n", state.SelectedTitle)
	fmt.Fprintln(w, state.FinalContent)
	fmt.Fprintf(w, "\n---\n%d words in %.1fs", state.WordCount, state.GenerationTime.Seconds())
	if state.Translated() {
		fmt.Fprintf(w, ", translated to %s", state.TargetLanguage)
	}
	fmt.Fprintln(w)
}

// eventPrinter writes one line per workflow event, for watching long runs.
func eventPrinter(w io.Writer) scribeflow.EventHandler {
	return func(e scribeflow.Event) {
		switch e.Kind {
		case scribeflow.EventNodeStarted:
			fmt.Fprintf(w, "[%s] started\n", e.NodeID)
		case scribeflow.EventNodeFinished:
			fmt.Fprintf(w, "[%s] finished in %s\n", e.NodeID, e.Elapsed.Round(time.Millisecond))
		case scribeflow.EventNodeFailed:
			fmt.Fprintf(w, "[%s] failed: %v\n", e.NodeID, e.Payload["error"])
		case scribeflow.EventRouteDecision:
			fmt.Fprintf(w, "[router] %v\n", e.Payload["route"])
		}
	}
}
