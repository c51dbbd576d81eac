package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-prep/internal/config"
	"github.com/sells-group/interview-prep/internal/store"
)

// testConfig installs a config backed by a temp SQLite file with no
// provider credentials and restores the previous one afterwards.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	dir := t.TempDir()
	cfg = &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "test.db")},
		Cache:  config.CacheConfig{Driver: "store", TTLHours: 1},
		Mail:   config.MailConfig{Root: filepath.Join(dir, "mail"), DefaultFolder: "INBOX"},
		Output: config.OutputConfig{Dir: filepath.Join(dir, "out")},
		Search: config.SearchConfig{
			Providers:  []string{"tavily", "jina", "perplexity"},
			MaxResults: 5,
		},
		Generation: config.GenerationConfig{Providers: []string{"anthropic", "gemini", "perplexity"}},
		Extraction: config.ExtractionConfig{Mode: "chain"},
		Pipeline: config.PipelineConfig{
			ConfidenceThreshold: 0.7,
			MaxFollowupQueries:  3,
			Loop1Depth:          "basic",
			Loop2Depth:          "advanced",
			QueryConcurrency:    2,
		},
		Batch:  config.BatchConfig{MaxConcurrentEmails: 2, MaxEmails: 10},
		Server: config.ServerConfig{Port: 8080, CORSOrigins: []string{"*"}},
	}
	return cfg
}

// testStore opens and migrates a SQLite store at the configured path.
func testStore(t *testing.T) store.Store {
	t.Helper()
	st, err := openStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// executeRoot runs the CLI with args against a config loaded from the
// environment and returns stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := cfg
	t.Cleanup(func() {
		cfg = prev
		resetFlags(rootCmd)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// envConfig points the environment-driven config at a temp database.
func envConfig(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("PREP_STORE_DRIVER", "sqlite")
	t.Setenv("PREP_STORE_DATABASE_URL", dbPath)
	t.Setenv("PREP_CACHE_DRIVER", "store")
	t.Setenv("PREP_LOG_LEVEL", "error")
	return dbPath
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
