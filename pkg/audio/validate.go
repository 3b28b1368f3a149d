package audio

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
)

const minOutputBytes = 1000

// ValidateWAV checks that a converted file is a sane mono recording before
// it is uploaded: non-trivial size, expected sample rate, single channel,
// duration close to the source, and an audible signal. Clipping above 2%
// of samples is logged but tolerated since aggressive restoration chains
// can push peaks. expectedDuration of zero skips the duration check.
func ValidateWAV(path string, sampleRate int, expectedDuration float64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() < minOutputBytes {
		return fmt.Errorf("output too small: %d bytes", info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("read output: %w", err)
	}
	if int(decoder.SampleRate) != sampleRate {
		return fmt.Errorf("wrong sample rate: %dHz (expected %dHz)", decoder.SampleRate, sampleRate)
	}
	if decoder.NumChans != 1 {
		return fmt.Errorf("wrong channels: %d (expected 1)", decoder.NumChans)
	}
	if len(buf.Data) == 0 {
		return fmt.Errorf("output is silent (no samples decoded)")
	}

	if expectedDuration > 0 {
		actual := float64(len(buf.Data)) / float64(sampleRate)
		tolerance := math.Max(expectedDuration*0.15, 0.5)
		if math.Abs(actual-expectedDuration) > tolerance {
			return fmt.Errorf("duration mismatch: %.1fs vs %.1fs", actual, expectedDuration)
		}
	}

	fullScale := 32768.0
	if buf.SourceBitDepth > 0 {
		fullScale = math.Pow(2, float64(buf.SourceBitDepth-1))
	}
	var peak float64
	clipped := 0
	for _, v := range buf.Data {
		amp := math.Abs(float64(v)) / fullScale
		if amp > peak {
			peak = amp
		}
		if amp > 0.99 {
			clipped++
		}
	}
	if peak < 0.001 {
		return fmt.Errorf("output is silent (max amplitude: %.6f)", peak)
	}
	if ratio := float64(clipped) / float64(len(buf.Data)); ratio > 0.02 {
		logger.Log.WithFields(map[string]interface{}{
			"path":         path,
			"clipped_pct":  fmt.Sprintf("%.1f", ratio*100),
			"sample_count": len(buf.Data),
		}).Warn("Output has clipping")
	}
	return nil
}
