package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached research and documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mgr, closeCache, err := initCache(ctx, st)
		if err != nil {
			return err
		}
		defer closeCache()
		if mgr == nil {
			return eris.New("cache is disabled (cache.driver=none)")
		}

		scope, clearing := cacheScopeFromFlags(cmd)
		if !clearing {
			stats, err := mgr.Stats(ctx)
			if err != nil {
				return eris.Wrap(err, "cache stats")
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{
				"research":  stats.Research,
				"documents": stats.Documents,
				"total":     stats.Total(),
			})
		}

		n, err := mgr.Clear(ctx, scope)
		if err != nil {
			return eris.Wrapf(err, "clear cache scope %s", scope)
		}
		zap.L().Info("cache cleared", zap.String("scope", string(scope)), zap.Int("entries", n))
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"scope":   scope,
			"cleared": n,
		})
	},
}

// cacheScopeFromFlags maps the clear flags to a scope. ok is false when
// only --status was given.
func cacheScopeFromFlags(cmd *cobra.Command) (cache.Scope, bool) {
	flags := cmd.Flags()
	switch {
	case mustBool(flags.GetBool("clear-all")):
		return cache.ScopeAll, true
	case mustBool(flags.GetBool("clear-research")):
		return cache.ScopeResearch, true
	case mustBool(flags.GetBool("clear-documents")):
		return cache.ScopeDocuments, true
	}
	return "", false
}

func mustBool(v bool, _ error) bool { return v }

func init() {
	cacheCmd.Flags().Bool("clear-all", false, "remove every cache entry")
	cacheCmd.Flags().Bool("clear-research", false, "remove cached search results")
	cacheCmd.Flags().Bool("clear-documents", false, "remove cached prep documents")
	cacheCmd.Flags().Bool("status", false, "print entry counts per scope")
	cacheCmd.MarkFlagsMutuallyExclusive("clear-all", "clear-research", "clear-documents", "status")
	cacheCmd.MarkFlagsOneRequired("clear-all", "clear-research", "clear-documents", "status")
	rootCmd.AddCommand(cacheCmd)
}
