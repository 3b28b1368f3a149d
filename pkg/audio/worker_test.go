package audio

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/calls"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
)

func init() {
	logger.Init()
}

type fakeClaimStore struct {
	claimed   []calls.Call
	claimErr  error
	ops       []string
	completed map[string]string
	failed    map[string]string
}

func (f *fakeClaimStore) ClaimPending(ctx context.Context, limit int) ([]calls.Call, error) {
	f.ops = append(f.ops, "claim")
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if limit < len(f.claimed) {
		return f.claimed[:limit], nil
	}
	return f.claimed, nil
}

func (f *fakeClaimStore) RecoverStuck(ctx context.Context, olderThanSec float64) (int64, error) {
	f.ops = append(f.ops, "recover")
	return 0, nil
}

func (f *fakeClaimStore) MarkCompleted(ctx context.Context, callUID, storageKey string) (int64, error) {
	if f.completed == nil {
		f.completed = map[string]string{}
	}
	f.completed[callUID] = storageKey
	return 1, nil
}

func (f *fakeClaimStore) MarkFailed(ctx context.Context, callUID, message string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[callUID] = message
	return nil
}

func (f *fakeClaimStore) CountByStatus(ctx context.Context, status string) (int64, error) {
	return int64(len(f.claimed)), nil
}

type fakeObjectStore struct {
	uploads map[string]map[string]string
	err     error
}

func (f *fakeObjectStore) Upload(ctx context.Context, localPath, key string, metadata map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.uploads == nil {
		f.uploads = map[string]map[string]string{}
	}
	f.uploads[key] = metadata
	return "s3://test-bucket/" + key, nil
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, dest string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("compressed audio"), 0o644)
}

type fakeAnalyzer struct {
	analysis Analysis
	err      error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, path string) (Analysis, error) {
	return f.analysis, f.err
}

type fakeConverter struct {
	duration float64
	convErr  error
	attempts int
	tiers    []string
	writeOut func(outPath string)
}

func (f *fakeConverter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return f.duration, nil
}

func (f *fakeConverter) Convert(ctx context.Context, inputPath, outputPath string, tier Tier, durationSec float64) error {
	f.attempts++
	f.tiers = append(f.tiers, tier.Name)
	if f.convErr != nil {
		return f.convErr
	}
	if f.writeOut != nil {
		f.writeOut(outputPath)
	}
	return nil
}

func testCall() calls.Call {
	started := time.Date(2023, 12, 13, 21, 20, 0, 0, time.UTC)
	tgid := int64(441)
	feedID := int64(7207)
	return calls.Call{
		CallUID:      "7207-1702500000",
		URL:          "http://cdn.example/7207-1702500000.m4a",
		PlaylistUUID: "a1b2c3",
		StartedAt:    &started,
		TGID:         &tgid,
		FeedID:       &feedID,
		DurationMS:   2250,
		Status:       calls.StatusProcessing,
	}
}

func testWorker(t *testing.T, repo *fakeClaimStore, store *fakeObjectStore, fetcher *fakeFetcher, analyzer *fakeAnalyzer, conv *fakeConverter, maxRetries int) *Worker {
	t.Helper()
	return &Worker{
		repo:      repo,
		store:     store,
		fetcher:   fetcher,
		analyzer:  analyzer,
		converter: conv,
		opts: Options{
			BatchSize:      10,
			MaxRetries:     maxRetries,
			RetryInterval:  time.Millisecond,
			StuckTimeout:   10 * time.Minute,
			TempDir:        t.TempDir(),
			BucketPath:     "calls",
			SampleRate:     16000,
			TargetLoudness: -20,
			Thresholds:     DefaultThresholds(),
		},
	}
}

func validOutput(t *testing.T) func(string) {
	return func(outPath string) {
		writeWAV(t, outPath, 16000, 1, sinePCM(1000, 16000, 16000, 0.5))
	}
}

func TestProcessPendingCompletesCall(t *testing.T) {
	repo := &fakeClaimStore{claimed: []calls.Call{testCall()}}
	store := &fakeObjectStore{}
	conv := &fakeConverter{duration: 1.0, writeOut: validOutput(t)}
	w := testWorker(t, repo, store, &fakeFetcher{}, &fakeAnalyzer{analysis: Analysis{QualityScore: 80}}, conv, 2)

	processed, failed, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if processed != 1 || failed != 0 {
		t.Errorf("processed=%d failed=%d, want 1/0", processed, failed)
	}

	wantKey := "calls/playlist_id=a1b2c3/2023/12/13/call_7207-1702500000.wav"
	if got := repo.completed["7207-1702500000"]; got != wantKey {
		t.Errorf("storage key = %q, want %q", got, wantKey)
	}
	if md := store.uploads[wantKey]; md["talkgroup"] != "441" || md["codec"] != "pcm_s16le" {
		t.Errorf("upload metadata = %v", md)
	}
	if conv.tiers[0] != "TIER1-CLEAN" {
		t.Errorf("quality 80 converted with %s", conv.tiers[0])
	}
	if len(repo.ops) < 2 || repo.ops[0] != "recover" || repo.ops[1] != "claim" {
		t.Errorf("stuck recovery did not run before claim: %v", repo.ops)
	}

	entries, _ := os.ReadDir(w.opts.TempDir)
	if len(entries) != 0 {
		t.Errorf("%d temp files left behind", len(entries))
	}
}

func TestUploadFailureNeverCompletes(t *testing.T) {
	repo := &fakeClaimStore{claimed: []calls.Call{testCall()}}
	store := &fakeObjectStore{err: errors.New("connection refused")}
	conv := &fakeConverter{duration: 1.0, writeOut: validOutput(t)}
	w := testWorker(t, repo, store, &fakeFetcher{}, &fakeAnalyzer{analysis: Analysis{QualityScore: 80}}, conv, 1)

	processed, failed, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if processed != 0 || failed != 1 {
		t.Errorf("processed=%d failed=%d, want 0/1", processed, failed)
	}
	if len(repo.completed) != 0 {
		t.Errorf("call marked completed despite upload failure: %v", repo.completed)
	}
	if msg := repo.failed["7207-1702500000"]; !strings.HasPrefix(msg, "upload: ") {
		t.Errorf("persisted error = %q, want upload prefix", msg)
	}
	if conv.attempts != 2 {
		t.Errorf("whole sequence retried %d times, want 2", conv.attempts)
	}
}

func TestConversionFailuresExhaustRetryBudget(t *testing.T) {
	repo := &fakeClaimStore{claimed: []calls.Call{testCall()}}
	conv := &fakeConverter{duration: 1.0, convErr: errors.New("ffmpeg failed: " + strings.Repeat("x", 600))}
	w := testWorker(t, repo, &fakeObjectStore{}, &fakeFetcher{}, &fakeAnalyzer{analysis: Analysis{QualityScore: 80}}, conv, 2)

	_, failed, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed=%d, want 1", failed)
	}
	if conv.attempts != 3 {
		t.Errorf("attempts=%d, want 3", conv.attempts)
	}
	msg := repo.failed["7207-1702500000"]
	if !strings.HasPrefix(msg, "convert: ") {
		t.Errorf("persisted error = %q, want convert prefix", msg)
	}

	entries, _ := os.ReadDir(w.opts.TempDir)
	if len(entries) != 0 {
		t.Errorf("%d temp files left behind after failure", len(entries))
	}
}

func TestAnalysisFailureFallsBackToConservativeChain(t *testing.T) {
	repo := &fakeClaimStore{claimed: []calls.Call{testCall()}}
	conv := &fakeConverter{duration: 1.0, writeOut: validOutput(t)}
	analyzer := &fakeAnalyzer{err: errors.New("decode for analysis: no samples")}
	w := testWorker(t, repo, &fakeObjectStore{}, &fakeFetcher{}, analyzer, conv, 2)

	processed, _, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if processed != 1 {
		t.Errorf("processed=%d, want 1", processed)
	}
	if conv.tiers[0] != "FALLBACK" {
		t.Errorf("converted with %s, want FALLBACK", conv.tiers[0])
	}
}

func TestLegacyKeyWhenStartTimeMissing(t *testing.T) {
	call := testCall()
	call.StartedAt = nil
	repo := &fakeClaimStore{claimed: []calls.Call{call}}
	conv := &fakeConverter{duration: 1.0, writeOut: validOutput(t)}
	w := testWorker(t, repo, &fakeObjectStore{}, &fakeFetcher{}, &fakeAnalyzer{analysis: Analysis{QualityScore: 80}}, conv, 2)

	if _, _, err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if got := repo.completed["7207-1702500000"]; got != "calls/7207-1702500000.wav" {
		t.Errorf("storage key = %q, want legacy layout", got)
	}
}

func TestClaimErrorPropagates(t *testing.T) {
	repo := &fakeClaimStore{claimErr: errors.New("connection reset")}
	w := testWorker(t, repo, &fakeObjectStore{}, &fakeFetcher{}, &fakeAnalyzer{}, &fakeConverter{}, 2)

	if _, _, err := w.ProcessPending(context.Background()); err == nil {
		t.Error("claim failure not propagated")
	}
}
