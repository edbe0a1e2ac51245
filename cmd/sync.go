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
	syncProvider string
	syncLimit    int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync all places, stopping at the first failure",
	Long:  "Like enrich, but fail-fast: a partial snapshot set is treated as corrupt downstream, so the run aborts on the first failed place.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		env, err := initPipeline(ctx, syncProvider)
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
		if syncLimit > 0 && len(items) > syncLimit {
			items = items[:syncLimit]
		}

		run, err := st.CreateRun(ctx, "sync", syncProvider, cfg.Location.City)
		if err != nil {
			return err
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return err
		}

		result := env.coord.RunSync(ctx, items)

		if err := st.SaveOutcomes(ctx, run.ID, result.Summary.Outcomes); err != nil {
			zap.L().Warn("saving outcomes failed", zap.Error(err))
		}
		if result.Success {
			if err := st.CompleteRun(ctx, run.ID, result.Summary); err != nil {
				return eris.Wrap(err, "record run summary")
			}
		} else if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); err != nil {
			zap.L().Warn("marking run failed", zap.Error(err))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}

		if !result.Success {
			return eris.Errorf("sync stopped at %q: %s", result.FailedAt, result.Error)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncProvider, "provider", "google", "data provider (google or outscraper)")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "max places to process (0 = all)")
	rootCmd.AddCommand(syncCmd)
}
