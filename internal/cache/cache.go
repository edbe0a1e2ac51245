// Package cache persists place snapshots as JSON files in a GitHub
// repository, one file per place under data/places/<city>/<place id>.json.
//
// The repository doubles as a human-auditable history: every refresh is a
// commit. Writes ride the contents API's SHA check; on conflict the save
// re-reads the current SHA and retries a bounded number of times with
// linear backoff.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/internal/resilience"
	"github.com/segunak/places-cli/pkg/github"
)

const (
	saveAttempts = 3
	saveBackoff  = 2 * time.Second
)

// Store reads and writes place snapshots.
type Store struct {
	repo    github.Client
	city    string
	now     func() time.Time
	backoff time.Duration
}

// NewStore creates a snapshot store for one city.
func NewStore(repo github.Client, city string) *Store {
	return &Store{repo: repo, city: city, now: time.Now, backoff: saveBackoff}
}

// Path returns the repository path for a place's snapshot file.
func (s *Store) Path(placeID string) string {
	return fmt.Sprintf("data/places/%s/%s.json", s.city, placeID)
}

// Fetch loads a place's snapshot. It returns (nil, nil) when no file
// exists. A file that exists but does not parse is an error: somebody
// hand-edited it, and silently regenerating would hide that.
func (s *Store) Fetch(ctx context.Context, placeID string) (*model.PlaceSnapshot, error) {
	file, err := s.repo.GetFile(ctx, s.Path(placeID))
	if err != nil {
		return nil, err
	}
	if !file.Exists {
		return nil, nil
	}

	var snap model.PlaceSnapshot
	if err := json.Unmarshal(file.Content, &snap); err != nil {
		return nil, eris.Wrapf(err, "cache: parse snapshot %s", placeID)
	}
	return &snap, nil
}

// IsFresh reports whether a snapshot is recent enough to reuse. A snapshot
// exactly maxAgeDays old is already stale. Missing or unparseable
// timestamps are stale, never errors.
func (s *Store) IsFresh(snap *model.PlaceSnapshot, maxAgeDays int) bool {
	if snap == nil {
		return false
	}
	age, ok := snap.Age(s.now())
	if !ok {
		return false
	}
	return age < time.Duration(maxAgeDays)*24*time.Hour
}

// Save writes a snapshot, stamping it with the current time. Concurrent
// writers are expected: each attempt re-reads the file's current SHA, so a
// conflict means someone else won the race since our read and we just try
// again against their commit.
func (s *Store) Save(ctx context.Context, snap *model.PlaceSnapshot) error {
	if snap.PlaceID == "" {
		return eris.New("cache: snapshot has no place id")
	}
	snap.Stamp(s.now())

	path := s.Path(snap.PlaceID)
	message := fmt.Sprintf("Update place data for %s", snap.PlaceID)

	cfg := resilience.LinearRetryConfig(saveAttempts, s.backoff)
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, github.ErrConflict) }
	cfg.OnRetry = resilience.RetryLogger("github", "save snapshot")

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		file, err := s.repo.GetFile(ctx, path)
		if err != nil {
			return err
		}
		sha := ""
		if file.Exists {
			sha = file.SHA
			// A refresh that found no photos keeps the prior ones; photo
			// availability comes and goes between scrapes.
			if len(snap.Photos.URLs) == 0 {
				var prior model.PlaceSnapshot
				if err := json.Unmarshal(file.Content, &prior); err == nil && len(prior.Photos.URLs) > 0 {
					snap.Photos = prior.Photos
				}
			}
		}

		content, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return eris.Wrap(err, "cache: marshal snapshot")
		}
		if err := s.repo.PutFile(ctx, path, content, message, sha); err != nil {
			return err
		}
		zap.L().Info("snapshot saved",
			zap.String("place_id", snap.PlaceID),
			zap.String("path", path),
		)
		return nil
	})
}
