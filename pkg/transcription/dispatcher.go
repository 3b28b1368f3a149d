package transcription

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/kafka"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/observability/metrics"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/observability/systemlog"
)

const (
	dispatchComponent = "transcription_dispatcher"
	taskTranscribe    = "transcription.transcribe"
)

type candidateStore interface {
	PendingCandidates(ctx context.Context, limit, maxAgeHours int) ([]Candidate, error)
	MarkQueued(ctx context.Context, callUID string) error
}

type taskPublisher interface {
	PublishTask(ctx context.Context, task, callUID, storageKey string) error
}

type auditLog interface {
	Record(ctx context.Context, component, eventType, message string, metadata map[string]interface{}) error
}

// Options carries the dispatch tunables.
type Options struct {
	BatchSize   int
	MaxAgeHours int
	RateDelay   time.Duration
}

// Dispatcher hands completed calls to the transcription workers through the
// task queue, pacing enqueues so a large backlog cannot flood the brokers.
type Dispatcher struct {
	repo      candidateStore
	publisher taskPublisher
	audit     auditLog
	limiter   *rate.Limiter
	opts      Options
}

func NewDispatcher(repo *Repository, publisher *kafka.Producer, audit *systemlog.Recorder, opts Options) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		audit:     audit,
		limiter:   rate.NewLimiter(rate.Every(opts.RateDelay), 1),
		opts:      opts,
	}
}

// DispatchPending runs one dispatch batch and returns how many tasks were
// queued. The state row is upserted to queued before publishing, so a
// failed publish leaves the call eligible for the next cycle rather than
// stranded.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	pending, err := d.repo.PendingCandidates(ctx, d.opts.BatchSize, d.opts.MaxAgeHours)
	if err != nil {
		return 0, fmt.Errorf("select transcription candidates: %w", err)
	}
	if len(pending) == 0 {
		logger.Log.Debug("No pending transcriptions")
		return 0, nil
	}

	logger.Log.WithField("count", len(pending)).Info("Found calls pending transcription")

	queued := 0
	for i := range pending {
		candidate := &pending[i]
		if err := d.limiter.Wait(ctx); err != nil {
			break
		}
		if err := d.repo.MarkQueued(ctx, candidate.CallUID); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"call_uid": candidate.CallUID,
				"error":    err.Error(),
			}).Error("Failed to mark call queued")
			continue
		}
		if err := d.publisher.PublishTask(ctx, taskTranscribe, candidate.CallUID, candidate.StorageKey); err != nil {
			continue
		}
		queued++
		logger.Log.WithField("call_uid", candidate.CallUID).Info("Queued transcription")
	}

	if queued > 0 {
		err := d.audit.Record(ctx, dispatchComponent, "batch_queued",
			fmt.Sprintf("Queued %d/%d transcription tasks", queued, len(pending)),
			map[string]interface{}{"queued": queued, "total": len(pending)})
		if err != nil {
			logger.Log.WithField("error", err.Error()).Warn("Failed to record dispatch batch")
		}
	}
	metrics.ObserveDispatch(queued)

	logger.Log.WithFields(map[string]interface{}{
		"queued": queued,
		"total":  len(pending),
	}).Info("Transcription dispatch complete")
	return queued, nil
}
