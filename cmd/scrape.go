package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/apod-archiver/internal/apod"
)

func newScrapeCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Extracts and stores every entry in a date range",
		Long: `Walks the archive from the newest date to the oldest, storing each entry and
deriving its thumbnail. Dates default to scrape.from and scrape.to from the
configuration, which in turn default to the whole archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			scrapeCfg := appInstance.Config().Scrape
			if from != "" {
				scrapeCfg.From = from
			}
			if to != "" {
				scrapeCfg.To = to
			}
			start, end, err := scrapeCfg.Range(appInstance.Today())
			if err != nil {
				return err
			}

			idx, err := appInstance.BuildIndex(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := appInstance.Runner().Run(cmd.Context(), idx, start, end)
			if printErr := printJSON(cmd, summary); printErr != nil && err == nil {
				err = printErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "oldest date to scrape (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "newest date to scrape (YYYY-MM-DD)")
	return cmd
}

func parseDateArg(raw string) (time.Time, error) {
	date, err := apod.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return date, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
