package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/provider"
)

var (
	placeProvider string
	placeName     string
	placeID       string
	placeForce    bool
)

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Fetch or refresh the snapshot for a single place",
	Long:  "Resolves the place ID from the name if needed, reuses a fresh cached snapshot unless --force, and prints the snapshot JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("place"); err != nil {
			return err
		}
		if placeName == "" && placeID == "" {
			return eris.New("either --name or --id is required")
		}

		env, err := initPipeline(ctx, placeProvider)
		if err != nil {
			return err
		}

		id, err := env.source.ResolvePlaceID(ctx, placeName, placeID)
		if err != nil {
			return eris.Wrapf(err, "resolve place %q", placeName)
		}

		if !placeForce {
			snap, err := env.snapshots.Fetch(ctx, id)
			if err != nil {
				return err
			}
			if env.snapshots.IsFresh(snap, cfg.Cache.MaxAgeDays) {
				zap.L().Info("using cached snapshot",
					zap.String("place_id", id),
					zap.String("last_updated", snap.LastUpdated),
				)
				return printJSON(snap)
			}
		}

		snap, err := env.source.AllPlaceData(ctx, id, placeName, false)
		if err != nil {
			return eris.Wrapf(err, "fetch place data for %s", id)
		}
		if err := env.snapshots.Save(ctx, snap); err != nil {
			return err
		}

		return printJSON(snap)
	},
}

var placeResolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolve a place name to a place ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := provider.ParseKind(placeProvider)
		if err != nil {
			return err
		}
		env, err := initPipeline(ctx, string(kind))
		if err != nil {
			return err
		}

		id, err := env.source.FindPlaceID(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"place_name": args[0], "place_id": id})
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	placeCmd.PersistentFlags().StringVar(&placeProvider, "provider", "google", "data provider (google or outscraper)")
	placeCmd.Flags().StringVar(&placeName, "name", "", "place name to resolve")
	placeCmd.Flags().StringVar(&placeID, "id", "", "known place ID")
	placeCmd.Flags().BoolVar(&placeForce, "force", false, "refresh even if the cached snapshot is fresh")
	placeCmd.AddCommand(placeResolveCmd)
	rootCmd.AddCommand(placeCmd)
}
