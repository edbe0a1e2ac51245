// Package enrich coordinates the full pipeline for a set of record-store
// places: resolve a place ID, reuse or refresh the cached snapshot, and
// reconcile provider data into the record's fields.
package enrich

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/cache"
	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/internal/provider"
	"github.com/segunak/places-cli/internal/reconcile"
	"github.com/segunak/places-cli/internal/resilience"
	"github.com/segunak/places-cli/pkg/airtable"
)

// Record-store field names the coordinator writes.
const (
	fieldPlaceID     = "Google Maps Place Id"
	fieldProfileURL  = "Google Maps Profile URL"
	fieldWebsite     = "Website"
	fieldAddress     = "Address"
	fieldDescription = "Description"
	fieldPurchase    = "Purchase Required"
	fieldParking     = "Parking"
	fieldLatitude    = "Latitude"
	fieldLongitude   = "Longitude"
	fieldPhotos      = "Photos"
	fieldHasDataFile = "Has Data File"
	fieldOperational = "Operational"
	fieldPlaceName   = "Place"
)

// Config tunes a coordinator.
type Config struct {
	Concurrency int
	MaxAgeDays  int
	View        string
}

// WorkItem is one record-store place queued for processing. PhotoURLs holds
// the record's existing photo attachments; when present, the provider's
// metered photo fetch is skipped and these back-fill the snapshot.
type WorkItem struct {
	RecordID  string
	PlaceName string
	PlaceID   string
	HasPhotos bool
	PhotoURLs []string
}

// Coordinator runs the enrichment pipeline.
type Coordinator struct {
	records    airtable.Client
	snapshots  *cache.Store
	source     provider.Provider
	reconciler *reconcile.Reconciler
	cfg        Config
}

// New creates a Coordinator.
func New(records airtable.Client, snapshots *cache.Store, source provider.Provider, reconciler *reconcile.Reconciler, cfg Config) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 90
	}
	return &Coordinator{
		records:    records,
		snapshots:  snapshots,
		source:     source,
		reconciler: reconciler,
		cfg:        cfg,
	}
}

// Plan lists the records to process, newest first, skipping none: records
// without a place name surface as skipped outcomes rather than silently
// disappearing from summaries.
func (c *Coordinator) Plan(ctx context.Context) ([]WorkItem, error) {
	records, err := c.records.ListRecords(ctx, c.cfg.View)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: list records")
	}

	items := make([]WorkItem, 0, len(records))
	for _, r := range records {
		items = append(items, WorkItem{
			RecordID:  r.ID,
			PlaceName: r.StringField(fieldPlaceName),
			PlaceID:   r.StringField(fieldPlaceID),
			HasPhotos: r.HasAttachments(fieldPhotos),
			PhotoURLs: r.AttachmentURLs(fieldPhotos),
		})
	}
	return items, nil
}

// ProcessPlace runs the full pipeline for one place. Every return carries a
// terminal outcome; errors are folded into the outcome, not returned,
// because callers batch these and one failure must not look like a batch
// failure.
func (c *Coordinator) ProcessPlace(ctx context.Context, item WorkItem) model.EnrichmentOutcome {
	outcome := model.EnrichmentOutcome{
		PlaceName: item.PlaceName,
		RecordID:  item.RecordID,
	}

	if err := ctx.Err(); err != nil {
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}
	if item.PlaceName == "" {
		outcome.Status = model.StatusSkipped
		outcome.Message = "record has no place name"
		return outcome
	}

	placeID, err := c.source.ResolvePlaceID(ctx, item.PlaceName, item.PlaceID)
	if err != nil {
		if errors.Is(err, provider.ErrNoPlaceID) {
			outcome.Status = model.StatusSkipped
			outcome.Message = "no place id could be resolved"
			return outcome
		}
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}
	outcome.PlaceID = placeID

	snap, fromCache, err := c.loadOrRefresh(ctx, placeID, item)
	if err != nil {
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}
	if fromCache {
		outcome.Status = model.StatusCached
		outcome.Message = "used cached snapshot"
	} else {
		outcome.Status = model.StatusSucceeded
	}

	updates, err := c.applyFields(ctx, item, placeID, snap)
	outcome.FieldUpdates = updates
	if err != nil {
		outcome.Status = model.StatusFailed
		outcome.Message = err.Error()
	}
	return outcome
}

// loadOrRefresh returns a usable snapshot, preferring a fresh cached one.
// The bool reports whether the cache satisfied the request. When the record
// already holds photos the provider's photo fetch is skipped and the
// record's URLs back-fill the snapshot before it persists.
func (c *Coordinator) loadOrRefresh(ctx context.Context, placeID string, item WorkItem) (*model.PlaceSnapshot, bool, error) {
	snap, err := c.snapshots.Fetch(ctx, placeID)
	if err != nil {
		return nil, false, err
	}
	if c.snapshots.IsFresh(snap, c.cfg.MaxAgeDays) {
		zap.L().Debug("cache hit",
			zap.String("place_id", placeID),
			zap.String("last_updated", snap.LastUpdated),
		)
		return snap, true, nil
	}

	skipPhotos := item.HasPhotos

	// Transient provider hiccups get one retry; everything else fails the place.
	retryCfg := resilience.RetryConfig{MaxAttempts: 2}
	retryCfg.OnRetry = resilience.RetryLogger("provider", "fetch place data")
	fresh, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.PlaceSnapshot, error) {
		return c.source.AllPlaceData(ctx, placeID, item.PlaceName, skipPhotos)
	})
	if err != nil {
		return nil, false, err
	}
	if skipPhotos && len(item.PhotoURLs) > 0 {
		fresh.Photos = model.PhotoSet{
			PlaceID: placeID,
			URLs:    item.PhotoURLs,
			Message: "retrieved from record store",
		}
	}
	if err := c.snapshots.Save(ctx, fresh); err != nil {
		return nil, false, err
	}
	return fresh, false, nil
}

// applyFields reconciles the snapshot into the record. Updates run in a
// fixed order; the first write error stops the pass but the updates already
// decided stay in the returned map.
func (c *Coordinator) applyFields(ctx context.Context, item WorkItem, placeID string, snap *model.PlaceSnapshot) (map[string]model.FieldUpdate, error) {
	d := snap.Details

	candidates := []reconcile.Candidate{
		{Field: fieldPlaceID, Value: placeID, Raw: placeID},
		{Field: fieldProfileURL, Value: d.GoogleMapsURL, Raw: d.GoogleMapsURL},
		{Field: fieldWebsite, Value: baseURL(d.Website), Raw: d.Website},
		{Field: fieldAddress, Value: d.Address, Raw: d.Address},
		{Field: fieldDescription, Value: d.Description, Raw: d.Description},
		{Field: fieldPurchase, Value: string(d.PurchaseRequired), Raw: string(d.PurchaseRequired)},
	}
	if len(d.Parking) > 0 {
		candidates = append(candidates, reconcile.Candidate{
			Field: fieldParking, Value: d.Parking[0], Raw: joinRaw(d.Parking),
		})
	}
	if d.Latitude != nil {
		candidates = append(candidates, floatCandidate(fieldLatitude, *d.Latitude))
	}
	if d.Longitude != nil {
		candidates = append(candidates, floatCandidate(fieldLongitude, *d.Longitude))
	}
	if !item.HasPhotos && len(snap.Photos.URLs) > 0 {
		attachments := photoAttachments(snap.Photos.URLs)
		candidates = append(candidates, reconcile.Candidate{
			Field: fieldPhotos,
			Value: strconv.Itoa(len(attachments)) + " photos",
			Write: attachments,
			Raw:   strconv.Itoa(len(snap.Photos.URLs)) + " photo urls",
		})
	}
	// The snapshot exists on disk by now, cached or freshly saved.
	candidates = append(candidates, reconcile.Candidate{
		Field: fieldHasDataFile, Value: "Yes", Raw: "Yes",
	})

	updates := make(map[string]model.FieldUpdate, len(candidates))
	for _, cand := range candidates {
		fu, err := c.reconciler.Apply(ctx, item.RecordID, cand)
		updates[cand.Field] = fu
		if err != nil {
			return updates, err
		}
	}
	return updates, nil
}

// photoAttachments renders photo URLs as the record store's attachment
// shape.
func photoAttachments(urls []string) []any {
	attachments := make([]any, 0, len(urls))
	for _, u := range urls {
		attachments = append(attachments, map[string]any{"url": u})
	}
	return attachments
}

func floatCandidate(field string, v float64) reconcile.Candidate {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return reconcile.Candidate{Field: field, Value: s, Write: v, Raw: s}
}

func joinRaw(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// baseURL strips query and fragment from a website URL. Scraped site links
// arrive wrapped in tracking parameters.
func baseURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
