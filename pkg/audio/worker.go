package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/calls"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/observability/metrics"
)

// stageError tags a processing failure with the pipeline stage that raised
// it, so persisted error messages read "convert: ffmpeg failed: ...".
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

type claimStore interface {
	ClaimPending(ctx context.Context, limit int) ([]calls.Call, error)
	RecoverStuck(ctx context.Context, olderThanSec float64) (int64, error)
	MarkCompleted(ctx context.Context, callUID, storageKey string) (int64, error)
	MarkFailed(ctx context.Context, callUID, message string) error
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type objectStore interface {
	Upload(ctx context.Context, localPath, key string, metadata map[string]string) (string, error)
}

type sourceFetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

type qualityAnalyzer interface {
	Analyze(ctx context.Context, path string) (Analysis, error)
}

type audioConverter interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	Convert(ctx context.Context, inputPath, outputPath string, tier Tier, durationSec float64) error
}

// Options carries the tunables for one worker instance.
type Options struct {
	BatchSize      int
	MaxRetries     int
	RetryInterval  time.Duration
	StuckTimeout   time.Duration
	TempDir        string
	BucketPath     string
	SampleRate     int
	TargetLoudness float64
	Thresholds     Thresholds
}

// Worker drains claimed pending calls through the download, enhance,
// validate, upload pipeline. Multiple instances can run against the same
// table; the claim protocol keeps them from stepping on each other.
type Worker struct {
	repo      claimStore
	store     objectStore
	fetcher   sourceFetcher
	analyzer  qualityAnalyzer
	converter audioConverter
	opts      Options
}

func NewWorker(repo *calls.Repository, store *Store, fetcher *Downloader, analyzer *Analyzer, converter *Converter, opts Options) *Worker {
	return &Worker{
		repo:      repo,
		store:     store,
		fetcher:   fetcher,
		analyzer:  analyzer,
		converter: converter,
		opts:      opts,
	}
}

// ProcessPending runs one batch: recover rows stuck in processing, claim up
// to BatchSize pending rows, and work through them sequentially. One call's
// exhausted retries never stop the rest of the batch.
func (w *Worker) ProcessPending(ctx context.Context) (processed, failed int, err error) {
	recovered, err := w.repo.RecoverStuck(ctx, w.opts.StuckTimeout.Seconds())
	if err != nil {
		logger.Log.WithField("error", err.Error()).Error("Failed to recover stuck calls")
	} else if recovered > 0 {
		logger.Log.WithField("recovered", recovered).Warn("Reset stuck processing calls to pending")
	}

	claimed, err := w.repo.ClaimPending(ctx, w.opts.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("claim pending calls: %w", err)
	}

	if pending, countErr := w.repo.CountByStatus(ctx, calls.StatusPending); countErr == nil {
		metrics.SetAudioBacklog(pending)
	}
	if len(claimed) == 0 {
		return 0, 0, nil
	}

	logger.Log.WithField("claimed", len(claimed)).Info("Processing claimed audio batch")

	for i := range claimed {
		if ctx.Err() != nil {
			break
		}
		if err := w.processCall(ctx, &claimed[i]); err != nil {
			failed++
			continue
		}
		processed++
	}
	metrics.ObserveAudio(processed, failed)
	return processed, failed, nil
}

// processCall retries the full per-call sequence with exponential backoff
// and persists a terminal error once the attempt budget is spent.
func (w *Worker) processCall(ctx context.Context, call *calls.Call) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.opts.RetryInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(w.opts.MaxRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attemptErr := w.attemptCall(ctx, call); attemptErr != nil {
			logger.Log.WithFields(map[string]interface{}{
				"call_uid": call.CallUID,
				"attempt":  attempt,
				"error":    attemptErr.Error(),
			}).Warn("Audio processing attempt failed")
			return attemptErr
		}
		return nil
	}, policy)
	if err == nil {
		return nil
	}

	if markErr := w.repo.MarkFailed(ctx, call.CallUID, err.Error()); markErr != nil {
		logger.Log.WithFields(map[string]interface{}{
			"call_uid": call.CallUID,
			"error":    markErr.Error(),
		}).Error("Failed to persist terminal error")
	}
	logger.Log.WithFields(map[string]interface{}{
		"call_uid": call.CallUID,
		"attempts": attempt,
		"error":    err.Error(),
	}).Error("Audio processing exhausted retries")
	return err
}

// attemptCall is one pass through the pipeline. Temp files are removed on
// every exit path, including success, since the WAV lives in object storage
// once uploaded.
func (w *Worker) attemptCall(ctx context.Context, call *calls.Call) error {
	srcPath := filepath.Join(w.opts.TempDir, call.CallUID+".mp3")
	outPath := filepath.Join(w.opts.TempDir, call.CallUID+".wav")
	defer removeQuietly(srcPath)
	defer removeQuietly(outPath)

	if err := w.fetcher.Fetch(ctx, call.URL, srcPath); err != nil {
		return &stageError{stage: "download", err: err}
	}

	duration, err := w.converter.ProbeDuration(ctx, srcPath)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"call_uid": call.CallUID,
			"error":    err.Error(),
		}).Warn("Could not probe source duration")
		duration = 0
	}

	tier := w.selectTier(ctx, call.CallUID, srcPath)

	if err := w.converter.Convert(ctx, srcPath, outPath, tier, duration); err != nil {
		return &stageError{stage: "convert", err: err}
	}
	if err := ValidateWAV(outPath, w.opts.SampleRate, duration); err != nil {
		return &stageError{stage: "validate", err: err}
	}

	key := LegacyKey(w.opts.BucketPath, call.CallUID)
	if call.PlaylistUUID != "" && call.StartedAt != nil {
		key = HierarchicalKey(w.opts.BucketPath, call.PlaylistUUID, call.CallUID, *call.StartedAt)
	}
	uri, err := w.store.Upload(ctx, outPath, key, ObjectMetadata(call))
	if err != nil {
		return &stageError{stage: "upload", err: err}
	}

	affected, err := w.repo.MarkCompleted(ctx, call.CallUID, key)
	if err != nil {
		return &stageError{stage: "finalize", err: err}
	}
	if affected != 1 {
		logger.Log.WithFields(map[string]interface{}{
			"call_uid": call.CallUID,
			"rows":     affected,
		}).Error("Completion update affected unexpected row count")
	}

	logger.Log.WithFields(map[string]interface{}{
		"call_uid": call.CallUID,
		"tier":     tier.Name,
		"uri":      uri,
	}).Info("Audio processed and uploaded")
	return nil
}

// selectTier analyzes the source recording and picks a filter chain. An
// analysis failure falls back to the conservative chain rather than
// failing the call.
func (w *Worker) selectTier(ctx context.Context, callUID, srcPath string) Tier {
	analysis, err := w.analyzer.Analyze(ctx, srcPath)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"call_uid": callUID,
			"error":    err.Error(),
		}).Warn("Audio analysis failed, using fallback chain")
		return FallbackTier(w.opts.TargetLoudness)
	}
	tier := SelectTier(analysis.QualityScore, w.opts.TargetLoudness, w.opts.Thresholds)
	logger.Log.WithFields(map[string]interface{}{
		"call_uid":    callUID,
		"tier":        tier.Name,
		"quality":     fmt.Sprintf("%.0f", analysis.QualityScore),
		"snr_db":      fmt.Sprintf("%.1f", analysis.SNREstimate),
		"rms_db":      fmt.Sprintf("%.1f", analysis.RMSdB),
		"noise_floor": fmt.Sprintf("%.4f", analysis.NoiseFloor),
	}).Info("Selected processing tier")
	return tier
}
