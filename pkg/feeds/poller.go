package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/calls"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

const ingestComponent = "ingestion"

type liveCallsFetcher interface {
	LiveCalls(ctx context.Context, playlistUUID string, lastPos int64) (*LiveCallsPage, error)
}

type callStore interface {
	Insert(ctx context.Context, call *calls.Call) (bool, error)
	CountAll(ctx context.Context) (int64, error)
}

type playlistStore interface {
	ListSyncEnabled(ctx context.Context) ([]Playlist, error)
	UpdateLastPos(ctx context.Context, uuid string, lastPos int64) error
	PollStart(ctx context.Context, uuid string) error
	PollEnd(ctx context.Context, uuid string, success bool, notes string) error
}

type auditLog interface {
	Record(ctx context.Context, component, eventType, message string, metadata map[string]interface{}) error
	RecordDuration(ctx context.Context, component, eventType, message string, metadata map[string]interface{}, elapsed time.Duration) error
}

// FeedResult is the per-feed outcome of one ingest cycle.
type FeedResult struct {
	UUID       string
	Name       string
	Total      int
	Inserted   int
	Duplicates int
	Errors     int
	LastPos    int64
	Failed     bool
}

// CycleSummary aggregates one ingest cycle across all feeds.
type CycleSummary struct {
	Feeds          []FeedResult
	CallsProcessed int64
}

// Poller ingests new call metadata for every sync-enabled playlist. It
// never downloads audio; rows are created pending and picked up by the
// audio worker on its own schedule.
type Poller struct {
	playlists playlistStore
	callRepo  callStore
	client    liveCallsFetcher
	audit     auditLog
}

func NewPoller(playlists playlistStore, callRepo callStore, client liveCallsFetcher, audit auditLog) *Poller {
	return &Poller{
		playlists: playlists,
		callRepo:  callRepo,
		client:    client,
		audit:     audit,
	}
}

// RunIngestCycle polls every enabled playlist concurrently. One feed
// failing is logged and reported in its FeedResult; it never aborts the
// other feeds or the cycle.
func (p *Poller) RunIngestCycle(ctx context.Context) (*CycleSummary, error) {
	start := time.Now()

	if err := p.audit.Record(ctx, ingestComponent, "cycle_start", "Starting ingestion cycle", nil); err != nil {
		logger.Log.WithError(err).Warn("Failed to record cycle start")
	}

	playlists, err := p.playlists.ListSyncEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if len(playlists) == 0 {
		logger.Log.Warn("No sync-enabled playlists")
		return &CycleSummary{}, nil
	}
	logger.Log.WithField("playlists", len(playlists)).Info("Polling enabled playlists")

	initial, err := p.callRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]FeedResult, len(playlists))
	var wg sync.WaitGroup
	for i := range playlists {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.processPlaylist(ctx, &playlists[i])
		}(i)
	}
	wg.Wait()

	final, err := p.callRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	processed := final - initial

	for i := range results {
		metrics.ObserveIngest(results[i].Inserted, results[i].Duplicates)
		if results[i].Failed {
			metrics.IncIngestFailures()
		}
	}

	elapsed := time.Since(start)
	err = p.audit.RecordDuration(ctx, ingestComponent, "cycle_complete",
		fmt.Sprintf("Processed %d calls in %dms", processed, elapsed.Milliseconds()),
		map[string]interface{}{
			"calls_processed":   processed,
			"playlists_count":   len(playlists),
			"cycle_duration_ms": elapsed.Milliseconds(),
		}, elapsed)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to record cycle completion")
	}

	logger.Log.WithFields(logrus.Fields{
		"calls_processed": processed,
		"duration_ms":     elapsed.Milliseconds(),
	}).Info("Ingestion cycle complete")

	return &CycleSummary{Feeds: results, CallsProcessed: processed}, nil
}

func (p *Poller) processPlaylist(ctx context.Context, pl *Playlist) FeedResult {
	result := FeedResult{UUID: pl.UUID, Name: pl.Name}
	feedLog := logger.Log.WithFields(logrus.Fields{"playlist": pl.Name, "uuid": pl.UUID})

	if err := p.playlists.PollStart(ctx, pl.UUID); err != nil {
		feedLog.WithError(err).Error("Poll start failed")
		result.Failed = true
		return result
	}

	page, err := p.client.LiveCalls(ctx, pl.UUID, pl.LastPos)
	if err != nil {
		feedLog.WithError(err).Error("Playlist fetch failed")
		p.endPoll(ctx, pl.UUID, false, err.Error(), feedLog)
		result.Failed = true
		return result
	}

	result.Total = len(page.Calls)
	result.LastPos = page.LastPos
	fetchedAt := time.Now().UTC()

	for i := range page.Calls {
		row := page.Calls[i].ToCall(pl.UUID, fetchedAt)
		inserted, err := p.callRepo.Insert(ctx, &row)
		switch {
		case err != nil:
			feedLog.WithError(err).WithField("call_uid", row.CallUID).Error("Call insert failed")
			result.Errors++
		case inserted:
			result.Inserted++
		default:
			result.Duplicates++
		}
	}

	feedLog.WithFields(logrus.Fields{
		"total":      result.Total,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"errors":     result.Errors,
		"last_pos":   page.LastPos,
	}).Info("Playlist batch complete")

	err = p.audit.Record(ctx, ingestComponent, "playlist_batch",
		fmt.Sprintf("Playlist %s: %d/%d inserted", pl.Name, result.Inserted, result.Total),
		map[string]interface{}{
			"playlist_uuid": pl.UUID,
			"playlist_name": pl.Name,
			"total_calls":   result.Total,
			"inserted":      result.Inserted,
			"duplicates":    result.Duplicates,
			"errors":        result.Errors,
			"last_pos":      page.LastPos,
		})
	if err != nil {
		feedLog.WithError(err).Warn("Failed to record playlist batch")
	}

	if page.LastPos > 0 {
		if err := p.playlists.UpdateLastPos(ctx, pl.UUID, page.LastPos); err != nil {
			feedLog.WithError(err).Error("Cursor update failed")
			p.endPoll(ctx, pl.UUID, false, err.Error(), feedLog)
			result.Failed = true
			return result
		}
	}

	notes := fmt.Sprintf("Processed %d calls (%d new, %d dup), lastPos=%d",
		result.Total, result.Inserted, result.Duplicates, page.LastPos)
	p.endPoll(ctx, pl.UUID, true, notes, feedLog)
	return result
}

func (p *Poller) endPoll(ctx context.Context, uuid string, success bool, notes string, feedLog *logrus.Entry) {
	if err := p.playlists.PollEnd(ctx, uuid, success, notes); err != nil {
		feedLog.WithError(err).Error("Poll end failed")
	}
}
