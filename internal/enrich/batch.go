package enrich

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/internal/reconcile"
)

// RunBatch processes items best-effort: failures land in their outcome row
// and the rest of the batch keeps going. Items run in waves of Concurrency;
// a wave fully drains before the next starts, which keeps pressure on the
// rate-limited record store predictable.
func (c *Coordinator) RunBatch(ctx context.Context, items []WorkItem) *model.BatchSummary {
	outcomes := make([]model.EnrichmentOutcome, len(items))

	for start := 0; start < len(items); start += c.cfg.Concurrency {
		end := min(start+c.cfg.Concurrency, len(items))

		zap.L().Info("processing wave",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(items)),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Concurrency)
		for i := start; i < end; i++ {
			g.Go(func() error {
				outcomes[i] = c.ProcessPlace(gctx, items[i])
				return nil // don't abort the wave on individual failure
			})
		}
		// Workers never return errors; Wait only propagates ctx cancellation.
		if err := g.Wait(); err != nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return Summarize(outcomes)
}

// SyncResult is the outcome of a fail-fast pass.
type SyncResult struct {
	Success         bool                `json:"success"`
	PlacesProcessed int                 `json:"places_processed"`
	FailedAt        string              `json:"failed_at,omitempty"`
	Error           string              `json:"error,omitempty"`
	Summary         *model.BatchSummary `json:"summary"`
}

// RunSync processes items sequentially and stops at the first failure.
// Downstream consumers of the snapshot files treat a partial sync as
// corrupt, so there is no point burning provider quota past a failure.
func (c *Coordinator) RunSync(ctx context.Context, items []WorkItem) *SyncResult {
	var outcomes []model.EnrichmentOutcome

	for _, item := range items {
		if ctx.Err() != nil {
			return &SyncResult{
				PlacesProcessed: len(outcomes),
				FailedAt:        item.PlaceName,
				Error:           ctx.Err().Error(),
				Summary:         Summarize(outcomes),
			}
		}

		outcome := c.ProcessPlace(ctx, item)
		outcomes = append(outcomes, outcome)
		if outcome.Status == model.StatusFailed {
			zap.L().Error("sync stopped on failure",
				zap.String("place", item.PlaceName),
				zap.String("error", outcome.Message),
			)
			return &SyncResult{
				PlacesProcessed: len(outcomes),
				FailedAt:        item.PlaceName,
				Error:           outcome.Message,
				Summary:         Summarize(outcomes),
			}
		}
	}

	return &SyncResult{
		Success:         true,
		PlacesProcessed: len(outcomes),
		Summary:         Summarize(outcomes),
	}
}

// RefreshOperationalStatuses checks every place against the provider and
// records the verdict. Closed places stay in the table; the Operational
// flag is how the dataset remembers them.
func (c *Coordinator) RefreshOperationalStatuses(ctx context.Context, items []WorkItem) *model.BatchSummary {
	outcomes := make([]model.EnrichmentOutcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = c.refreshOperational(gctx, item)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return Summarize(outcomes)
}

func (c *Coordinator) refreshOperational(ctx context.Context, item WorkItem) model.EnrichmentOutcome {
	outcome := model.EnrichmentOutcome{
		PlaceName: item.PlaceName,
		RecordID:  item.RecordID,
		PlaceID:   item.PlaceID,
	}
	if item.PlaceID == "" {
		outcome.Status = model.StatusSkipped
		outcome.Message = "record has no place id"
		return outcome
	}

	open, err := c.source.IsOperational(ctx, item.PlaceID)
	if err != nil {
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}
	verdict := "Yes"
	if !open {
		verdict = "No"
	}

	fu, err := c.reconciler.Apply(ctx, item.RecordID, reconcile.Candidate{
		Field: fieldOperational, Value: verdict, Raw: verdict,
	})
	outcome.FieldUpdates = map[string]model.FieldUpdate{fieldOperational: fu}
	if err != nil {
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}
	outcome.Status = model.StatusSucceeded
	return outcome
}

// RefreshPhotos re-fetches and re-selects photos for every place with a
// known place ID, replacing whatever photos the record currently holds, and
// keeps the cached snapshot's photo section in step.
func (c *Coordinator) RefreshPhotos(ctx context.Context, items []WorkItem) *model.BatchSummary {
	outcomes := make([]model.EnrichmentOutcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = c.refreshPhotos(gctx, item)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return Summarize(outcomes)
}

func (c *Coordinator) refreshPhotos(ctx context.Context, item WorkItem) model.EnrichmentOutcome {
	outcome := model.EnrichmentOutcome{
		PlaceName: item.PlaceName,
		RecordID:  item.RecordID,
		PlaceID:   item.PlaceID,
	}
	if item.PlaceID == "" {
		outcome.Status = model.StatusSkipped
		outcome.Message = "record has no place id"
		return outcome
	}

	set, err := c.source.PlacePhotos(ctx, item.PlaceID)
	if err != nil {
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}
	if len(set.URLs) == 0 {
		outcome.Status = model.StatusSkipped
		outcome.Message = "no usable photos returned"
		return outcome
	}

	fu, err := c.reconciler.Apply(ctx, item.RecordID, reconcile.Candidate{
		Field: fieldPhotos,
		Value: strconv.Itoa(len(set.URLs)) + " photos",
		Write: photoAttachments(set.URLs),
		Raw:   strconv.Itoa(len(set.URLs)) + " photo urls",
	})
	outcome.FieldUpdates = map[string]model.FieldUpdate{fieldPhotos: fu}
	if err != nil {
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}

	if err := c.savePhotoRefresh(ctx, item.PlaceID, set.URLs); err != nil {
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}
	outcome.Status = model.StatusSucceeded
	return outcome
}

// savePhotoRefresh writes the reselected photo list back into the cached
// snapshot so the file and the record never disagree. A place with no
// snapshot yet just keeps its record update.
func (c *Coordinator) savePhotoRefresh(ctx context.Context, placeID string, urls []string) error {
	snap, err := c.snapshots.Fetch(ctx, placeID)
	if err != nil || snap == nil {
		return err
	}
	snap.Photos.URLs = urls
	snap.Photos.Message = "photos refreshed"
	return c.snapshots.Save(ctx, snap)
}

// Summarize folds outcomes into batch totals. Cached counts as processed;
// it only counts as updated when a field actually changed.
func Summarize(outcomes []model.EnrichmentOutcome) *model.BatchSummary {
	summary := &model.BatchSummary{Outcomes: outcomes}
	for _, o := range outcomes {
		summary.TotalProcessed++
		switch o.Status {
		case model.StatusFailed:
			summary.TotalFailed++
		case model.StatusSkipped:
			summary.TotalSkipped++
		default:
			if o.Updated() {
				summary.TotalUpdated++
			}
		}
	}
	return summary
}
