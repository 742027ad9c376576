// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traylinx/claudecoder/internal/audit"
	"github.com/traylinx/claudecoder/internal/cache"
	"github.com/traylinx/claudecoder/internal/cli"
	"github.com/traylinx/claudecoder/internal/processor"
	"github.com/traylinx/claudecoder/internal/provider"
	"github.com/traylinx/claudecoder/internal/repo"
)

type runFlags struct {
	provider            string
	models              string
	maxTokens           int
	maxRequests         int
	baseBranch          string
	dryRun              bool
	disableTokenization bool
	ignore              []string
}

func newRunCommand() *cobra.Command {
	var f runFlags
	c := &cobra.Command{
		Use:   "run <prompt> <repository-path>",
		Short: "Ask the models for changes and apply them",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChanges(ctx, c.OutOrStdout(), c, f, args[0], args[1])
		},
	}
	c.Flags().StringVarP(&f.provider, "provider", "p", "", "Provider: auto, aws or openrouter")
	c.Flags().StringVarP(&f.models, "models", "m", "", "Comma separated model list in priority order")
	c.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Maximum tokens of a model answer")
	c.Flags().IntVar(&f.maxRequests, "max-requests", 0, "Maximum continuation requests")
	c.Flags().StringVar(&f.baseBranch, "base-branch", processor.DefaultBaseBranch, "Branch mentioned to the model")
	c.Flags().BoolVar(&f.dryRun, "dry-run", false, "Show what would be changed without writing")
	c.Flags().BoolVar(&f.disableTokenization, "disable-tokenization", false, "Send the repository without fitting it to the model budget")
	c.Flags().StringSliceVar(&f.ignore, "ignore", nil, "Additional gitignore patterns to exclude")
	return c
}

// applyRunFlags lets explicitly set flags override the configuration.
func applyRunFlags(c *cobra.Command, f runFlags) {
	flags := c.Flags()
	if flags.Changed("provider") {
		cfg.Provider = f.provider
	}
	if flags.Changed("models") {
		cfg.Models = f.models
	}
	if flags.Changed("max-tokens") {
		cfg.MaxTokens = f.maxTokens
	}
	if flags.Changed("max-requests") {
		cfg.MaxRequests = f.maxRequests
	}
	if flags.Changed("disable-tokenization") {
		cfg.Tokenization.Enabled = !f.disableTokenization
	}
	cfg.Sanitize()
}

func runChanges(ctx context.Context, out io.Writer, c *cobra.Command, f runFlags, prompt, repoPath string) error {
	applyRunFlags(c, f)

	root, err := filepath.Abs(repoPath)
	if err != nil {
		return err
	}
	if err := repo.Validate(root); err != nil {
		return err
	}

	creds := provider.CredentialsFromEnv()
	if os.Getenv("AWS_REGION") == "" && cfg.AWSRegion != "" {
		creds.AWSRegion = cfg.AWSRegion
	}
	if _, err := provider.DetectProvider(creds); err != nil {
		return err
	}

	auditLogger, err := audit.NewLogger(cfg.AuditLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLogger.Close()

	store, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.Dir, cfg.Cache.TTL)
	if err != nil {
		log.Warnf("Summary cache unavailable, continuing without it: %v", err)
		store = cache.Nop{}
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	p := processor.New(processor.Options{
		Provider:            cfg.Provider,
		Models:              cfg.Models,
		MaxRequests:         cfg.MaxRequests,
		DisableTokenization: !cfg.Tokenization.Enabled,
		Fallback:            cfg.FallbackOptions(),
		Optimizer:           cfg.OptimizerOptions(),
	}, provider.NewFactory(creds, cfg.ProviderOptions()),
		processor.WithCache(store),
		processor.WithAuditLogger(auditLogger))

	model, err := p.Initialize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cli.RenderTitle("claudecoder "+cli.Muted(p.SessionID())))
	fmt.Fprintf(out, "  Repository: %s\n  Model:      %s (%s)\n\n", root, model.DisplayName, model.Provider)

	snapshot, err := repo.ReadSnapshot(root, f.ignore...)
	if err != nil {
		return err
	}

	response, err := p.ProcessChanges(ctx, prompt, f.baseBranch, snapshot)
	if err != nil {
		return err
	}

	changes := processor.ParseCommands(response)
	if len(changes) == 0 {
		fmt.Fprintln(out, cli.Warn("  No file changes suggested."))
		return nil
	}

	results := repo.NewApplier(root, f.dryRun, auditLogger).Apply(changes)
	rows := make([][]string, 0, len(results))
	failed := 0
	for _, r := range results {
		status := cli.OK(string(r.Status))
		if r.Status == repo.StatusError {
			status = cli.Error(r.Error)
			failed++
		}
		rows = append(rows, []string{r.FilePath, fmt.Sprintf("%d", r.ContentLength), status})
	}
	fmt.Fprint(out, cli.RenderTable(cli.Table{Headers: []string{"File", "Chars", "Status"}, Rows: rows}))

	verb := "were"
	if f.dryRun {
		verb = "would be"
	}
	fmt.Fprintf(out, "\n  %d file(s) %s modified\n", len(results)-failed, verb)
	if failed > 0 {
		return fmt.Errorf("%d change(s) could not be applied", failed)
	}
	return nil
}
