// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/traylinx/claudecoder/internal/cli"
	"github.com/traylinx/claudecoder/internal/models"
	"github.com/traylinx/claudecoder/internal/repo"
	"github.com/traylinx/claudecoder/internal/tokenizer"
)

const defaultEstimateTop = 15

func newEstimateCommand() *cobra.Command {
	var (
		model  string
		top    int
		ignore []string
	)
	c := &cobra.Command{
		Use:   "estimate <repository-path>",
		Short: "Estimate the token cost of a repository against a model budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			snapshot, err := repo.ReadSnapshot(root, ignore...)
			if err != nil {
				return err
			}
			if model == "" {
				model = models.NewSelector(cfg.Models).All()[0].ID()
			}
			te := tokenizer.NewTokenEstimator(model, cfg.Tokenization.Estimator)
			return printEstimate(c.OutOrStdout(), te, snapshot, top)
		},
	}
	c.Flags().StringVarP(&model, "model", "m", "", "Model whose context window is used (default: first configured model)")
	c.Flags().IntVar(&top, "top", defaultEstimateTop, "Number of largest files to list")
	c.Flags().StringSliceVar(&ignore, "ignore", nil, "Additional gitignore patterns to exclude")
	return c
}

func printEstimate(out io.Writer, te *tokenizer.TokenEstimator, snapshot map[string]string, top int) error {
	files := make([]tokenizer.FileEstimate, 0, len(snapshot))
	total, binary := 0, 0
	for p, content := range snapshot {
		if tokenizer.IsBinary(content) {
			binary++
			continue
		}
		f := te.EstimateFile(p, content)
		total += f.Tokens
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Tokens != files[j].Tokens {
			return files[i].Tokens > files[j].Tokens
		}
		return files[i].FilePath < files[j].FilePath
	})

	limit := te.GetModelLimit()
	alloc := tokenizer.CalculateBudgetAllocation(total, limit)

	fmt.Fprintln(out, cli.RenderTitle("Token estimate"))
	fmt.Fprintf(out, "  Model:     %s (%s)\n", te.Model(), te.Method())
	fmt.Fprintf(out, "  Files:     %d (%d binary skipped)\n", len(files), binary)
	fmt.Fprintf(out, "  Tokens:    %s\n", cli.FormatTokens(total))
	fmt.Fprintf(out, "  Context:   %s\n", cli.FormatTokens(limit))
	fmt.Fprintf(out, "  Budget:    %s (core %s, docs %s, tests/config %s)\n",
		cli.FormatTokens(alloc.Total), cli.FormatTokens(alloc.CoreFiles),
		cli.FormatTokens(alloc.Documentation), cli.FormatTokens(alloc.TestsConfig))
	if total <= alloc.Total {
		fmt.Fprintln(out, "  "+cli.OK("fits without optimization"))
	} else {
		fmt.Fprintln(out, "  "+cli.Warn(fmt.Sprintf("over budget by %s, optimization required", cli.FormatTokens(total-alloc.Total))))
	}

	if top <= 0 || len(files) == 0 {
		return nil
	}
	rows := make([][]string, 0, top)
	for _, f := range files[:min(top, len(files))] {
		rows = append(rows, []string{f.FilePath, string(f.Type), strconv.Itoa(f.Priority), cli.FormatTokens(f.Tokens)})
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, cli.RenderTable(cli.Table{Headers: []string{"File", "Type", "Priority", "Tokens"}, Rows: rows}))
	return nil
}
