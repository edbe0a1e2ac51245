package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/config"
	"github.com/segunak/places-cli/pkg/outscraper"
	"github.com/segunak/places-cli/pkg/places"
)

// Deps bundles the clients and settings a provider needs.
type Deps struct {
	Google     places.Client
	Outscraper outscraper.Client
	Location   config.LocationConfig
	MaxPhotos  int
	// BalanceThreshold is the minimum Outscraper balance in USD. Zero
	// disables the preflight check.
	BalanceThreshold float64
}

// New constructs the named provider. The Outscraper provider verifies the
// account balance up front so a long batch never dies halfway through on an
// empty account.
func New(ctx context.Context, kind Kind, deps Deps) (Provider, error) {
	switch kind {
	case KindGoogle:
		return newGoogle(deps), nil
	case KindOutscraper:
		p := newOutscraper(deps)
		if deps.BalanceThreshold > 0 {
			if err := p.checkBalance(ctx); err != nil {
				return nil, err
			}
		}
		return p, nil
	default:
		_, err := ParseKind(string(kind))
		return nil, err
	}
}

func logSectionFailure(section, placeID string, err error) {
	zap.L().Warn("snapshot section unavailable",
		zap.String("section", section),
		zap.String("place_id", placeID),
		zap.Error(err),
	)
}
