package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/model"
)

var statusProvider string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Refresh the Operational flag for every place",
	Long:  "Checks each place against the provider and records whether it is still operating. Closed places stay in the base with Operational set to No.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		env, err := initPipeline(ctx, statusProvider)
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

		run, err := st.CreateRun(ctx, "status", statusProvider, cfg.Location.City)
		if err != nil {
			return err
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return err
		}

		summary := env.coord.RefreshOperationalStatuses(ctx, items)

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
	statusCmd.Flags().StringVar(&statusProvider, "provider", "google", "data provider (google or outscraper)")
	rootCmd.AddCommand(statusCmd)
}
