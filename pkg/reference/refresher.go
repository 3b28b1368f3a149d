package reference

import (
	"context"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/feeds"
)

type commonDataFetcher interface {
	Countries(ctx context.Context) ([]feeds.CountryRecord, error)
	States(ctx context.Context) ([]feeds.StateRecord, error)
}

type referenceStore interface {
	UpsertCountries(ctx context.Context, records []feeds.CountryRecord) (int, error)
	UpsertStates(ctx context.Context, records []feeds.StateRecord) (int, error)
}

// Refresher keeps the slow-changing country and state caches in sync with
// the upstream API. It runs on a daily cadence.
type Refresher struct {
	client commonDataFetcher
	repo   referenceStore
}

func NewRefresher(client *feeds.Client, repo *Repository) *Refresher {
	return &Refresher{client: client, repo: repo}
}

// RefreshCommon fetches both listings and upserts them. The two listings
// are independent; a failure in one does not skip the other, and the first
// error is returned after both have been attempted.
func (r *Refresher) RefreshCommon(ctx context.Context) error {
	var firstErr error
	countries, states := 0, 0

	records, err := r.client.Countries(ctx)
	if err != nil {
		logger.Log.WithField("error", err.Error()).Error("Failed to fetch countries")
		firstErr = err
	} else if countries, err = r.repo.UpsertCountries(ctx, records); err != nil {
		logger.Log.WithField("error", err.Error()).Error("Failed to upsert countries")
		firstErr = err
	}

	stateRecords, err := r.client.States(ctx)
	if err != nil {
		logger.Log.WithField("error", err.Error()).Error("Failed to fetch states")
		if firstErr == nil {
			firstErr = err
		}
	} else if states, err = r.repo.UpsertStates(ctx, stateRecords); err != nil {
		logger.Log.WithField("error", err.Error()).Error("Failed to upsert states")
		if firstErr == nil {
			firstErr = err
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"countries": countries,
		"states":    states,
	}).Info("Reference data refreshed")
	return firstErr
}
