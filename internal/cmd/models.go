// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/traylinx/claudecoder/internal/cli"
	"github.com/traylinx/claudecoder/internal/logging"
	"github.com/traylinx/claudecoder/internal/models"
	"github.com/traylinx/claudecoder/internal/provider"
	"github.com/traylinx/claudecoder/internal/tokenizer"
)

func newModelsCommand() *cobra.Command {
	var list string
	c := &cobra.Command{
		Use:   "models",
		Short: "Show the model priority list and available credentials",
		RunE: func(c *cobra.Command, _ []string) error {
			if c.Flags().Changed("models") {
				cfg.Models = list
			}
			return printModels(c.OutOrStdout(), cfg.Models, provider.CredentialsFromEnv())
		},
	}
	c.Flags().StringVarP(&list, "models", "m", "", "Comma separated model list in priority order")
	return c
}

func printModels(out io.Writer, list string, creds provider.Credentials) error {
	selector := models.NewSelector(list)

	fmt.Fprintln(out, cli.RenderTitle("Models"))
	rows := make([][]string, 0)
	for i, m := range selector.All() {
		limit := tokenizer.GetModelLimit(m.ID())
		ready := cli.Error("missing credentials")
		if creds.Has(m.Provider) {
			ready = cli.OK("ready")
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			m.DisplayName,
			m.Name,
			string(m.Provider),
			cli.FormatTokens(limit),
			cli.FormatTokens(tokenizer.InputBudget(limit)),
			ready,
		})
	}
	fmt.Fprint(out, cli.RenderTable(cli.Table{
		Headers: []string{"#", "Model", "ID", "Provider", "Context", "Budget", "Status"},
		Rows:    rows,
	}))

	fmt.Fprintln(out)
	fmt.Fprintln(out, cli.RenderTitle("Credentials"))
	fmt.Fprint(out, cli.RenderTable(cli.Table{
		Headers: []string{"Variable", "Value"},
		Rows: [][]string{
			{"OPENROUTER_API_KEY", secretOrUnset(creds.OpenRouterAPIKey)},
			{"AWS_ACCESS_KEY_ID", secretOrUnset(creds.AWSAccessKeyID)},
			{"AWS_SECRET_ACCESS_KEY", secretOrUnset(creds.AWSSecretAccessKey)},
			{"AWS_REGION", creds.AWSRegion},
		},
	}))
	return nil
}

func secretOrUnset(v string) string {
	if v == "" {
		return cli.Muted("(unset)")
	}
	return logging.MaskSecret(v)
}
