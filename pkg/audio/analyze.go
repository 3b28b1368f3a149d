package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

const analyzeTimeout = 30 * time.Second

// Analysis holds the signal metrics that drive tier selection. QualityScore
// is a 0-100 estimate derived from the ratio of the 95th percentile
// amplitude to the noise floor.
type Analysis struct {
	QualityScore     float64
	SNREstimate      float64
	RMSdB            float64
	SpectralCentroid float64
	NoiseFloor       float64
	DynamicRange     float64
	ZeroCrossingRate float64
}

// Analyzer decodes a recording to mono PCM through ffmpeg and computes
// quality metrics from the raw samples.
type Analyzer struct {
	runner     commandRunner
	sampleRate int
}

func NewAnalyzer(sampleRate int) *Analyzer {
	return &Analyzer{runner: execRunner{}, sampleRate: sampleRate}
}

func (a *Analyzer) Analyze(ctx context.Context, path string) (Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	result, err := a.runner.Run(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", a.sampleRate),
		"-",
	)
	if err != nil {
		return Analysis{}, fmt.Errorf("decode for analysis: %w (%s)", err, truncateStderr(result.Stderr))
	}

	samples := decodePCM16(result.Stdout)
	if len(samples) == 0 {
		return Analysis{}, fmt.Errorf("decode for analysis: no samples in %s", path)
	}
	return analyzeSamples(samples, a.sampleRate), nil
}

// decodePCM16 converts little-endian signed 16-bit PCM into samples
// normalized to [-1, 1).
func decodePCM16(raw []byte) []float64 {
	n := len(raw) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples
}

func analyzeSamples(samples []float64, sampleRate int) Analysis {
	abs := make([]float64, len(samples))
	var sumSquares float64
	crossings := 0
	for i, s := range samples {
		abs[i] = math.Abs(s)
		sumSquares += s * s
		if i > 0 && (samples[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}
	sort.Float64s(abs)

	noiseFloor := stat.Quantile(0.10, stat.Empirical, abs, nil)
	p95 := stat.Quantile(0.95, stat.Empirical, abs, nil)
	dynamicRange := p95 - noiseFloor

	snr := 20 * math.Log10(dynamicRange/(noiseFloor+1e-9))
	quality := math.Max(0, math.Min(100, (snr+10)*5))

	rms := 20 * math.Log10(math.Sqrt(sumSquares/float64(len(samples)))+1e-9)

	return Analysis{
		QualityScore:     quality,
		SNREstimate:      snr,
		RMSdB:            rms,
		SpectralCentroid: spectralCentroid(samples, sampleRate),
		NoiseFloor:       noiseFloor,
		DynamicRange:     dynamicRange,
		ZeroCrossingRate: float64(crossings) / float64(len(samples)),
	}
}

// spectralCentroid is the magnitude-weighted mean frequency of the signal,
// in Hz. Low values indicate muffled or band-limited audio.
func spectralCentroid(samples []float64, sampleRate int) float64 {
	fft := fourier.NewFFT(len(samples))
	coeffs := fft.Coefficients(nil, samples)

	var weighted, total float64
	for i, c := range coeffs {
		mag := math.Hypot(real(c), imag(c))
		weighted += fft.Freq(i) * float64(sampleRate) * mag
		total += mag
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

func truncateStderr(s string) string {
	const max = 500
	if len(s) > max {
		return s[:max]
	}
	return s
}
