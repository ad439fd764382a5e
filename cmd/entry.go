package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newEntryCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "entry <date>",
		Short: "Extracts one entry and prints it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			date, err := parseDateArg(args[0])
			if err != nil {
				return err
			}
			idx, err := appInstance.BuildIndex(cmd.Context())
			if err != nil {
				return err
			}

			if !save {
				entry, err := appInstance.Runner().Extract(cmd.Context(), idx, date)
				if err != nil {
					return err
				}
				return printJSON(cmd, entry)
			}

			res, err := appInstance.Runner().Process(cmd.Context(), idx, date)
			if err != nil {
				return err
			}
			if res.Err != nil {
				return res.Err
			}
			if res.ThumbnailErr != nil {
				appInstance.Logger().Warn("thumbnail failed", zap.Error(res.ThumbnailErr))
			}
			return printJSON(cmd, res.Entry)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the entry and derive its thumbnail")
	return cmd
}

func newThumbnailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thumbnail <date>",
		Short: "Derives the thumbnail for one entry and prints where it was stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			date, err := parseDateArg(args[0])
			if err != nil {
				return err
			}
			idx, err := appInstance.BuildIndex(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := appInstance.Runner().Extract(cmd.Context(), idx, date)
			if err != nil {
				return err
			}
			uri, err := appInstance.Thumbnails().Derive(cmd.Context(), entry.ImageURL, date)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
			return err
		},
	}
}
