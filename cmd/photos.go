package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/model"
)

var (
	photosProvider string
	photosLimit    int
)

var photosCmd = &cobra.Command{
	Use:   "photos",
	Short: "Re-fetch and re-select photos for every place",
	Long:  "Fetches fresh photos from the provider for each place with a known place ID and replaces the record's existing photos with the reselected set. The cached snapshot's photo section is updated to match.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		env, err := initPipeline(ctx, photosProvider)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := env.coord.Plan(ctx)
		if err != nil {
			return err
		}
		if photosLimit > 0 && len(items) > photosLimit {
			items = items[:photosLimit]
		}

		run, err := st.CreateRun(ctx, "photos", photosProvider, cfg.Location.City)
		if err != nil {
			return err
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return err
		}

		summary := env.coord.RefreshPhotos(ctx, items)

		if err := st.SaveOutcomes(ctx, run.ID, summary.Outcomes); err != nil {
			zap.L().Warn("saving outcomes failed", zap.Error(err))
		}
		if err := st.CompleteRun(ctx, run.ID, summary); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	photosCmd.Flags().StringVar(&photosProvider, "provider", "google", "data provider (google or outscraper)")
	photosCmd.Flags().IntVar(&photosLimit, "limit", 0, "process at most this many places (0 = all)")
	rootCmd.AddCommand(photosCmd)
}
