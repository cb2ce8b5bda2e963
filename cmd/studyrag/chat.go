package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"studyrag/internal/logger"
	"studyrag/internal/service"
	"studyrag/internal/tui"
	"studyrag/internal/watch"
)

var chatWatchDir string

var chatCmd = &cobra.Command{
	Use:   "chat [FILE...]",
	Short: "Chat with your course material in the terminal",
	Long: `Indexes the given documents and opens an interactive chat.

Controls:
  Enter          - Ask / run command
  Tab            - Toggle answer and sources
  Ctrl+R         - Resubmit the last failed prompt
  /image <path>  - Attach an image to the next questions (/image clears)
  /context <txt> - Change the course context
  Esc, Ctrl+C    - Quit

With --watch, documents in the folder are loaded at start and re-indexed
when they change.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatWatchDir, "watch", "", "load and watch a folder of course documents")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	patterns := args
	if chatWatchDir != "" {
		docs, err := documentsIn(chatWatchDir)
		if err != nil {
			return fmt.Errorf("watch folder: %w", err)
		}
		patterns = append(patterns, docs...)
	}
	if len(patterns) == 0 {
		return errors.New("no documents: pass files or --watch a folder")
	}

	log, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.session.LoadDocuments(ctx, patterns)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	for _, f := range report.Failed {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.Path, f.Err)
	}

	header, err := summaryHeader(a.session)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(ctx, a.session, header, cfg.Assembler.Context), tea.WithContext(ctx))

	if chatWatchDir != "" {
		w := watch.New(chatWatchDir, func(ctx context.Context, path string) error {
			loaded, err := a.session.LoadDocument(ctx, path)
			p.Send(tui.ReloadedMsg{Path: path, Loaded: loaded, Err: err})
			return err
		}, watch.Options{Logger: log})
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Watcher stopped", zap.Error(err))
			}
		}()
	}

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// summaryHeader renders one line per document for the chat header.
func summaryHeader(session *service.Session) (string, error) {
	sums, err := session.Summaries()
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(sums))
	for _, s := range sums {
		text := strings.Join(strings.Fields(s.Text), " ")
		if text == "" {
			text = "(no text)"
		}
		lines = append(lines, s.ID+": "+text)
	}
	return strings.Join(lines, "\n"), nil
}
