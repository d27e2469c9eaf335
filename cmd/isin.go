package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fin-nlp/securityid"
)

func newISINCmd() *cobra.Command {
	var country string

	cmd := &cobra.Command{
		Use:     "isin <cusip9>...",
		Short:   "Print the ISIN for one or more nine-character CUSIPs",
		Example: "fin-nlp isin 037833100",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, cusip := range args {
				isin, err := securityid.ISIN(country, cusip)
				if err != nil {
					return fmt.Errorf("%s: %w", cusip, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", cusip, isin)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&country, "country", "US", "two-letter ISIN country prefix")
	return cmd
}
