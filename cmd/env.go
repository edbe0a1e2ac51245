package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/segunak/places-cli/internal/cache"
	"github.com/segunak/places-cli/internal/enrich"
	"github.com/segunak/places-cli/internal/provider"
	"github.com/segunak/places-cli/internal/reconcile"
	"github.com/segunak/places-cli/internal/store"
	"github.com/segunak/places-cli/pkg/airtable"
	"github.com/segunak/places-cli/pkg/github"
	"github.com/segunak/places-cli/pkg/outscraper"
	"github.com/segunak/places-cli/pkg/places"
)

// pipelineEnv bundles the wired clients a command needs.
type pipelineEnv struct {
	records   airtable.Client
	snapshots *cache.Store
	source    provider.Provider
	coord     *enrich.Coordinator
}

// initPipeline wires provider, snapshot store, and coordinator from config.
func initPipeline(ctx context.Context, providerName string) (*pipelineEnv, error) {
	kind, err := provider.ParseKind(providerName)
	if err != nil {
		return nil, err
	}

	repo := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Repo, cfg.GitHub.Branch)
	records := airtable.NewClient(cfg.Airtable.Token, cfg.Airtable.BaseID, cfg.Airtable.Table)
	snapshots := cache.NewStore(repo, cfg.Location.City)

	source, err := provider.New(ctx, kind, provider.Deps{
		Google:           places.NewClient(cfg.Google.APIKey),
		Outscraper:       outscraper.NewClient(cfg.Outscraper.APIKey),
		Location:         cfg.Location,
		MaxPhotos:        cfg.Photos.MaxPhotos,
		BalanceThreshold: cfg.Outscraper.BalanceThreshold,
	})
	if err != nil {
		return nil, err
	}

	coord := enrich.New(records, snapshots, source, reconcile.New(records, nil), enrich.Config{
		Concurrency: cfg.Batch.Concurrency,
		MaxAgeDays:  cfg.Cache.MaxAgeDays,
		View:        cfg.Airtable.View,
	})

	return &pipelineEnv{
		records:   records,
		snapshots: snapshots,
		source:    source,
		coord:     coord,
	}, nil
}

// initStore opens the run-history store named by config.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}
	return st, nil
}
