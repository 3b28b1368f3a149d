package scheduler

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/observability/metrics"
)

// drainPoll is how often Shutdown re-checks the active job count.
var drainPoll = time.Second

type job struct {
	name      string
	interval  time.Duration
	immediate bool
	fn        func(ctx context.Context) error
	inFlight  atomic.Bool
}

// Scheduler runs one long-lived ticker loop per registered job. At most one
// instance of each job runs at a time; a tick that fires while the previous
// run is still going is skipped, not queued.
type Scheduler struct {
	jobs         []*job
	active       atomic.Int64
	shuttingDown atomic.Bool
	stop         chan struct{}
	wg           sync.WaitGroup
	healthFile   string
}

func New(healthFile string) *Scheduler {
	return &Scheduler{
		stop:       make(chan struct{}),
		healthFile: healthFile,
	}
}

// Add registers a job. Jobs with immediate set run once at startup instead
// of waiting a full interval for their first tick. Must be called before
// Start.
func (s *Scheduler) Add(name string, interval time.Duration, immediate bool, fn func(ctx context.Context) error) {
	s.jobs = append(s.jobs, &job{name: name, interval: interval, immediate: immediate, fn: fn})
}

// Start launches the ticker loops and returns. The context is handed to
// every job run; it should stay live through shutdown so in-flight work can
// finish instead of being cancelled mid-write.
func (s *Scheduler) Start(ctx context.Context) {
	s.touchHealthFile()
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, j)
		logger.Log.WithFields(map[string]interface{}{
			"job":      j.name,
			"interval": j.interval.String(),
		}).Info("Scheduled job")
	}
}

// ActiveJobs reports how many job runs are in flight right now.
func (s *Scheduler) ActiveJobs() int {
	return int(s.active.Load())
}

// ShuttingDown reports whether Shutdown has been requested.
func (s *Scheduler) ShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Shutdown stops firing new jobs, then waits up to timeout for in-flight
// runs to drain, polling rather than cancelling. Idempotent.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	close(s.stop)
	s.wg.Wait()

	logger.Log.WithFields(map[string]interface{}{
		"active_jobs": s.ActiveJobs(),
		"timeout":     timeout.String(),
	}).Info("Waiting for active jobs to finish")

	var waited time.Duration
	ticks := 0
	for s.ActiveJobs() > 0 && waited < timeout {
		time.Sleep(drainPoll)
		waited += drainPoll
		ticks++
		if ticks%5 == 0 {
			logger.Log.WithFields(map[string]interface{}{
				"active_jobs": s.ActiveJobs(),
				"elapsed":     waited.String(),
			}).Info("Still waiting for jobs")
		}
	}

	if n := s.ActiveJobs(); n > 0 {
		logger.Log.WithField("active_jobs", n).Warn("Shutdown timeout reached with jobs still running")
	} else {
		logger.Log.Info("All jobs finished cleanly")
	}
	s.removeHealthFile()
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	defer s.wg.Done()

	if j.immediate {
		go s.runJob(ctx, j)
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			go s.runJob(ctx, j)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	if s.shuttingDown.Load() {
		logger.Log.WithField("job", j.name).Info("Skipping job, shutdown in progress")
		return
	}
	if !j.inFlight.CompareAndSwap(false, true) {
		logger.Log.WithField("job", j.name).Warn("Previous run still active, skipping this tick")
		return
	}
	metrics.SetActiveJobs(int(s.active.Add(1)))
	defer func() {
		j.inFlight.Store(false)
		metrics.SetActiveJobs(int(s.active.Add(-1)))
		s.touchHealthFile()
	}()

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"job":         j.name,
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Error("Job failed")
		return
	}
	logger.Log.WithFields(map[string]interface{}{
		"job":         j.name,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Job completed")
}

// Liveness file probes: touched after every run, removed on shutdown.
// Failures here are non-critical and stay silent.

func (s *Scheduler) touchHealthFile() {
	if s.healthFile == "" {
		return
	}
	_ = os.WriteFile(s.healthFile, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644)
}

func (s *Scheduler) removeHealthFile() {
	if s.healthFile == "" {
		return
	}
	_ = os.Remove(s.healthFile)
}
