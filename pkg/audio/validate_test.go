package audio

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, sampleRate, numChans int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, numChans, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func sinePCM(freq float64, sampleRate, n int, amplitude float64) []int {
	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return samples
}

func TestValidateWAVAcceptsGoodOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	writeWAV(t, path, 16000, 1, sinePCM(1000, 16000, 16000, 0.5))

	if err := ValidateWAV(path, 16000, 1.0); err != nil {
		t.Errorf("valid file rejected: %v", err)
	}
}

func TestValidateWAVRejections(t *testing.T) {
	dir := t.TempDir()

	wrongRate := filepath.Join(dir, "rate.wav")
	writeWAV(t, wrongRate, 8000, 1, sinePCM(1000, 8000, 8000, 0.5))

	stereo := filepath.Join(dir, "stereo.wav")
	writeWAV(t, stereo, 16000, 2, sinePCM(1000, 16000, 32000, 0.5))

	silent := filepath.Join(dir, "silent.wav")
	writeWAV(t, silent, 16000, 1, make([]int, 16000))

	short := filepath.Join(dir, "short.wav")
	writeWAV(t, short, 16000, 1, sinePCM(1000, 16000, 16000, 0.5))

	tiny := filepath.Join(dir, "tiny.wav")
	writeWAV(t, tiny, 16000, 1, sinePCM(1000, 16000, 100, 0.5))

	cases := []struct {
		name     string
		path     string
		expected float64
		wantErr  string
	}{
		{"wrong sample rate", wrongRate, 0, "wrong sample rate"},
		{"stereo", stereo, 0, "wrong channels"},
		{"silent", silent, 1.0, "silent"},
		{"duration mismatch", short, 3.0, "duration mismatch"},
		{"too small", tiny, 0, "too small"},
		{"missing", filepath.Join(dir, "nope.wav"), 0, "not created"},
	}
	for _, tc := range cases {
		err := ValidateWAV(tc.path, 16000, tc.expected)
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: got %v, want error containing %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestValidateWAVToleratesClipping(t *testing.T) {
	samples := sinePCM(1000, 16000, 16000, 0.5)
	for i := 0; i < len(samples); i += 20 {
		samples[i] = 32767
	}
	path := filepath.Join(t.TempDir(), "clipped.wav")
	writeWAV(t, path, 16000, 1, samples)

	if err := ValidateWAV(path, 16000, 1.0); err != nil {
		t.Errorf("clipped but otherwise valid file rejected: %v", err)
	}
}
