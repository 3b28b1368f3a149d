package audio

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
)

const probeTimeout = 10 * time.Second

// Converter transcodes recordings to mono PCM WAV through ffmpeg, applying
// the filter chain picked for the recording's quality.
type Converter struct {
	runner       commandRunner
	sampleRate   int
	timeoutFloor time.Duration
}

func NewConverter(sampleRate int, timeoutFloor time.Duration) *Converter {
	return &Converter{runner: execRunner{}, sampleRate: sampleRate, timeoutFloor: timeoutFloor}
}

// ProbeDuration returns the container duration in seconds as reported by
// ffprobe.
func (c *Converter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	result, err := c.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w (%s)", err, truncateStderr(result.Stderr))
	}
	raw := strings.TrimSpace(string(result.Stdout))
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned unparseable duration %q", raw)
	}
	return duration, nil
}

// Convert writes outputPath from inputPath using the tier's filters. The
// timeout is twice the probed duration with a configured floor, so a stuck
// ffmpeg cannot wedge the worker. durationSec of zero means the probe
// failed and only the floor applies. A failed run leaves no partial output
// behind.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string, tier Tier, durationSec float64) error {
	timeout := c.timeoutFloor
	if d := time.Duration(durationSec * 2 * float64(time.Second)); d > timeout {
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Log.WithFields(map[string]interface{}{
		"tier":    tier.Name,
		"filters": len(tier.Filters),
		"timeout": timeout.String(),
	}).Debug("Starting audio conversion")

	result, err := c.runner.Run(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "warning", "-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", strconv.Itoa(c.sampleRate),
		"-c:a", "pcm_s16le",
		"-filter:a", tier.FilterChain(),
		outputPath,
	)
	if err != nil {
		removeQuietly(outputPath)
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("conversion timeout after %s", timeout)
		}
		stderr := truncateStderr(result.Stderr)
		if stderr == "" {
			stderr = err.Error()
		}
		return fmt.Errorf("ffmpeg failed: %s", stderr)
	}
	return nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Log.WithField("path", path).WithField("error", err.Error()).Warn("Failed to remove temp file")
	}
}
