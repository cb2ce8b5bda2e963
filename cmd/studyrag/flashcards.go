package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"studyrag/internal/logger"
)

var flashcardsCmd = &cobra.Command{
	Use:   "flashcards FILE...",
	Short: "Generate a flashcard deck as JSON",
	Long: `Reads the given documents, skipping the front matter of paginated files,
and asks the generator for question/answer flashcards. The deck is printed
as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFlashcards,
}

func init() {
	rootCmd.AddCommand(flashcardsCmd)
}

func runFlashcards(cmd *cobra.Command, args []string) error {
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

	deck, err := a.session.Flashcards(ctx, args, cfg.Assembler.Context)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(deck, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flashcards: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
