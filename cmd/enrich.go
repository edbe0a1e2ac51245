package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/model"
)

var (
	enrichProvider string
	enrichLimit    int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich all places in the base, best-effort",
	Long:  "Processes every record in the configured view. Individual failures are recorded in the summary; the batch keeps going.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		env, err := initPipeline(ctx, enrichProvider)
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
		if enrichLimit > 0 && len(items) > enrichLimit {
			items = items[:enrichLimit]
		}

		run, err := st.CreateRun(ctx, "enrich", enrichProvider, cfg.Location.City)
		if err != nil {
			return err
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return err
		}

		zap.L().Info("starting enrichment batch",
			zap.String("run_id", run.ID),
			zap.Int("places", len(items)),
			zap.String("provider", enrichProvider),
		)

		summary := env.coord.RunBatch(ctx, items)

		if err := st.SaveOutcomes(ctx, run.ID, summary.Outcomes); err != nil {
			zap.L().Warn("saving outcomes failed", zap.Error(err))
		}
		if err := st.CompleteRun(ctx, run.ID, summary); err != nil {
			return eris.Wrap(err, "record run summary")
		}

		zap.L().Info("enrichment batch complete",
			zap.String("run_id", run.ID),
			zap.Int("processed", summary.TotalProcessed),
			zap.Int("updated", summary.TotalUpdated),
			zap.Int("skipped", summary.TotalSkipped),
			zap.Int("failed", summary.TotalFailed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichProvider, "provider", "google", "data provider (google or outscraper)")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max places to process (0 = all)")
	rootCmd.AddCommand(enrichCmd)
}
