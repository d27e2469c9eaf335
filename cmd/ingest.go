package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fin-nlp/app"
	"fin-nlp/config"
)

func newIngestCmd() *cobra.Command {
	var (
		input     string
		domain    string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:     "ingest",
		Short:   "Screen an NDJSON post dump into the submissions table",
		Example: "fin-nlp ingest --input RS_2021-01.zst --batch-size 500",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv()
			if input != "" {
				cfg.Ingest.InputPath = input
			}
			if domain != "" {
				cfg.Ingest.Domain = domain
			}
			if batchSize > 0 {
				cfg.Database.BatchSize = batchSize
			}
			if cfg.Ingest.InputPath == "" {
				return fmt.Errorf("no input: pass --input or set INGEST_INPUT")
			}

			return runStage(cfg, "ingest", []string{"submissions"}, func(ctx context.Context, a *app.App) error {
				return a.RunIngest(ctx, cfg.Ingest.InputPath)
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "NDJSON post file, optionally .zst compressed")
	cmd.Flags().StringVar(&domain, "domain", "", "only keep posts from this domain")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "submissions per committed batch")
	return cmd
}
