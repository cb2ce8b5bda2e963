package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"studyrag/internal/logger"
	"studyrag/internal/service"
)

var (
	askImage string
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION FILE...",
	Short: "Answer one question from the given documents",
	Long: `Indexes the given documents (globs allowed), answers QUESTION with page
citations and prints the answer followed by its sources.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askImage, "image", "", "attach an image to the question")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer, prompt and sources as JSON")
	rootCmd.AddCommand(askCmd)
}

type askOutput struct {
	Answer  string          `json:"answer"`
	Prompt  string          `json:"prompt"`
	Sources []sourceSummary `json:"sources"`
}

type sourceSummary struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := loadAll(ctx, a.session, args[1:], log); err != nil {
		return err
	}
	ans, err := a.session.Ask(ctx, service.Question{
		Text:      args[0],
		Context:   cfg.Assembler.Context,
		ImagePath: askImage,
	})
	if err != nil {
		return err
	}
	if !ans.Result.OK() {
		return ans.Result.Err
	}

	out := askOutput{Answer: ans.Result.Text, Prompt: ans.Prompt.Text}
	for _, c := range ans.Prompt.Chunks {
		out.Sources = append(out.Sources, sourceSummary{Document: c.DocumentID, Page: c.PageNumber})
	}

	w := cmd.OutOrStdout()
	if askJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		_, _ = fmt.Fprintln(w, string(data))
		return nil
	}
	_, _ = fmt.Fprintln(w, out.Answer)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Sources:")
	for _, s := range out.Sources {
		_, _ = fmt.Fprintf(w, "  %s  p.%d\n", s.Document, s.Page)
	}
	return nil
}
