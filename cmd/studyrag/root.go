package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"studyrag/internal/config"
	"studyrag/internal/metrics"
)

var (
	cfgPath        string
	studentContext string

	// cfg is loaded before any subcommand runs.
	cfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "studyrag",
	Short: "Ask questions about your course material",
	Long: `studyrag indexes lecture notes, slides and books and answers questions
from them with page citations. Supported formats: .txt .pdf .docx.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		_ = godotenv.Load()

		var err error
		if cfgPath == "" {
			cfg, _, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			return err
		}
		if studentContext != "" {
			cfg.Assembler.Context = studentContext
		}
		metrics.Register()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"path to YAML config (default ./config.yaml or ~/.config/studyrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&studentContext, "context", "",
		"course context sent with every question, e.g. \"PSY101 midterm\"")
}
