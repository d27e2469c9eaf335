// Package cmd holds the fin-nlp command tree.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"fin-nlp/app"
	"fin-nlp/config"
)

// Execute builds the command tree and executes commands.
func Execute() error {
	c := &cobra.Command{
		Use:          "fin-nlp",
		Short:        "Match forum posts to securities and measure what followed",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	c.AddCommand(newIngestCmd())
	c.AddCommand(newSecuritiesCmd())
	c.AddCommand(newPerformanceCmd())
	c.AddCommand(newSentimentCmd())
	c.AddCommand(newISINCmd())

	return c.Execute()
}

// runStage starts an app for one stage, runs fn under a context cancelled
// on interrupt and closes the app
func runStage(cfg *config.Config, program string, tables []string, fn func(ctx context.Context, a *app.App) error) error {
	a := app.New(cfg)
	defer a.Close()

	if err := a.Start(program, tables); err != nil {
		return err
	}

	ctx, cancel := app.WithShutdown(context.Background())
	defer cancel()

	if err := fn(ctx, a); err != nil {
		a.Log().Errorf("❌ %s failed: %v", program, err)
		return err
	}
	a.Log().Infof("✅ %s completed", program)
	return nil
}
