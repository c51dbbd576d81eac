package main

import (
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/cache"
	"github.com/sells-group/interview-prep/internal/mail"
)

var (
	runFolder     string
	runMaxEmails  int
	runFilter     string
	runClearCache bool
	runOutputDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Write prep guides for the invitation emails in a folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runOutputDir != "" {
			cfg.Output.Dir = runOutputDir
		}
		folder := runFolder
		if folder == "" {
			folder = cfg.Mail.DefaultFolder
		}
		maxEmails := runMaxEmails
		if !cmd.Flags().Changed("max-emails") {
			maxEmails = cfg.Batch.MaxEmails
		}

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		if runClearCache && env.Cache != nil {
			n, err := env.Cache.Clear(ctx, cache.ScopeAll)
			if err != nil {
				return eris.Wrap(err, "clear cache")
			}
			zap.L().Info("cache cleared", zap.Int("entries", n))
		}

		emails, err := mail.NewFolderSource(cfg.Mail.Root).Fetch(ctx, mail.Query{
			Folder: folder,
			Max:    maxEmails,
			Filter: runFilter,
		})
		if err != nil {
			return eris.Wrap(err, "fetch emails")
		}

		summary, err := processBatch(ctx, emails, cfg.Batch.MaxConcurrentEmails, env.Pipeline.Run)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	runCmd.Flags().StringVar(&runFolder, "folder", "", "mail folder under mail.root (default from config)")
	runCmd.Flags().IntVar(&runMaxEmails, "max-emails", 0, "max number of emails to process, 0 for all (default from config)")
	runCmd.Flags().StringVar(&runFilter, "filter", "", "only process emails whose id, sender or subject contains this text")
	runCmd.Flags().BoolVar(&runClearCache, "clear-cache", false, "clear all cached research and documents first")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directory for prep guides (default from config)")
	rootCmd.AddCommand(runCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
