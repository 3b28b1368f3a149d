package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	callsInserted   atomic.Int64
	callsDuplicate  atomic.Int64
	ingestFailures  atomic.Int64
	audioProcessed  atomic.Int64
	audioFailed     atomic.Int64
	audioBacklog    atomic.Int64
	tasksDispatched atomic.Int64
	activeJobs      atomic.Int64
)

func ObserveIngest(inserted, duplicate int) {
	callsInserted.Add(int64(inserted))
	callsDuplicate.Add(int64(duplicate))
}

func IncIngestFailures() {
	ingestFailures.Add(1)
}

func ObserveAudio(processed, failed int) {
	audioProcessed.Add(int64(processed))
	audioFailed.Add(int64(failed))
}

func SetAudioBacklog(pending int64) {
	audioBacklog.Store(pending)
}

func ObserveDispatch(queued int) {
	tasksDispatched.Add(int64(queued))
}

func SetActiveJobs(n int) {
	activeJobs.Store(int64(n))
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP scanner_ingest_calls_inserted_total Number of new calls inserted since process start.\n")
	fmt.Fprintf(w, "# TYPE scanner_ingest_calls_inserted_total counter\n")
	fmt.Fprintf(w, "scanner_ingest_calls_inserted_total %d\n", callsInserted.Load())

	fmt.Fprintf(w, "# HELP scanner_ingest_calls_duplicate_total Number of already-seen calls skipped since process start.\n")
	fmt.Fprintf(w, "# TYPE scanner_ingest_calls_duplicate_total counter\n")
	fmt.Fprintf(w, "scanner_ingest_calls_duplicate_total %d\n", callsDuplicate.Load())

	fmt.Fprintf(w, "# HELP scanner_ingest_cycle_failures_total Number of per-playlist ingest failures since process start.\n")
	fmt.Fprintf(w, "# TYPE scanner_ingest_cycle_failures_total counter\n")
	fmt.Fprintf(w, "scanner_ingest_cycle_failures_total %d\n", ingestFailures.Load())

	fmt.Fprintf(w, "# HELP scanner_audio_calls_processed_total Number of calls fully processed and uploaded since process start.\n")
	fmt.Fprintf(w, "# TYPE scanner_audio_calls_processed_total counter\n")
	fmt.Fprintf(w, "scanner_audio_calls_processed_total %d\n", audioProcessed.Load())

	fmt.Fprintf(w, "# HELP scanner_audio_calls_failed_total Number of calls marked failed since process start.\n")
	fmt.Fprintf(w, "# TYPE scanner_audio_calls_failed_total counter\n")
	fmt.Fprintf(w, "scanner_audio_calls_failed_total %d\n", audioFailed.Load())

	fmt.Fprintf(w, "# HELP scanner_audio_backlog Number of calls awaiting audio processing at the last cycle.\n")
	fmt.Fprintf(w, "# TYPE scanner_audio_backlog gauge\n")
	fmt.Fprintf(w, "scanner_audio_backlog %d\n", audioBacklog.Load())

	fmt.Fprintf(w, "# HELP scanner_transcription_tasks_dispatched_total Number of transcription tasks queued since process start.\n")
	fmt.Fprintf(w, "# TYPE scanner_transcription_tasks_dispatched_total counter\n")
	fmt.Fprintf(w, "scanner_transcription_tasks_dispatched_total %d\n", tasksDispatched.Load())

	fmt.Fprintf(w, "# HELP scanner_scheduler_active_jobs Number of scheduler jobs currently executing.\n")
	fmt.Fprintf(w, "# TYPE scanner_scheduler_active_jobs gauge\n")
	fmt.Fprintf(w, "scanner_scheduler_active_jobs %d\n", activeJobs.Load())
}
