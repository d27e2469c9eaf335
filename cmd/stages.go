package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"fin-nlp/app"
	"fin-nlp/config"
)

func newSecuritiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "securities",
		Short: "Refresh security identities and daily returns for matched posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv()
			return runStage(cfg, "securities", []string{"securities", "security_returns"}, func(ctx context.Context, a *app.App) error {
				return a.RunSecurities(ctx)
			})
		},
	}
}

func newPerformanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "performance",
		Short: "Compound forward returns for every matched post",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv()
			return runStage(cfg, "performance", []string{"post_performance"}, func(ctx context.Context, a *app.App) error {
				return a.RunPerformance(ctx)
			})
		},
	}
}

func newSentimentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sentiment",
		Short: "Score unscored posts with the configured LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv()
			return runStage(cfg, "sentiment", []string{"post_sentiment"}, func(ctx context.Context, a *app.App) error {
				return a.RunSentiment(ctx, limit)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "score at most this many posts (0 for all)")
	return cmd
}
