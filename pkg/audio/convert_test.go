package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeRunner struct {
	result commandResult
	err    error
	runs   [][]string
	onRun  func(ctx context.Context, name string, args []string)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	f.runs = append(f.runs, append([]string{name}, args...))
	if f.onRun != nil {
		f.onRun(ctx, name, args)
	}
	return f.result, f.err
}

func TestProbeDurationParsesOutput(t *testing.T) {
	runner := &fakeRunner{result: commandResult{Stdout: []byte("12.34\n")}}
	c := &Converter{runner: runner, sampleRate: 16000, timeoutFloor: time.Minute}

	got, err := c.ProbeDuration(context.Background(), "in.mp3")
	if err != nil {
		t.Fatalf("ProbeDuration: %v", err)
	}
	if got != 12.34 {
		t.Errorf("duration = %v, want 12.34", got)
	}
	if name := runner.runs[0][0]; name != "ffprobe" {
		t.Errorf("ran %s, want ffprobe", name)
	}

	runner.result = commandResult{Stdout: []byte("N/A\n")}
	if _, err := c.ProbeDuration(context.Background(), "in.mp3"); err == nil {
		t.Error("unparseable duration accepted")
	}
}

func TestConvertBuildsFfmpegCommand(t *testing.T) {
	var deadline time.Time
	runner := &fakeRunner{
		onRun: func(ctx context.Context, name string, args []string) {
			deadline, _ = ctx.Deadline()
		},
	}
	c := &Converter{runner: runner, sampleRate: 16000, timeoutFloor: time.Minute}
	tier := SelectTier(80, -20, DefaultThresholds())

	if err := c.Convert(context.Background(), "in.mp3", "out.wav", tier, 45); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	args := runner.runs[0]
	if args[0] != "ffmpeg" {
		t.Fatalf("ran %s, want ffmpeg", args[0])
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-ac 1", "-ar 16000", "-c:a pcm_s16le", "-filter:a " + tier.FilterChain()} {
		if !strings.Contains(joined, want) {
			t.Errorf("command missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "out.wav" {
		t.Errorf("last arg = %s, want output path", args[len(args)-1])
	}

	// 45s source gets a 90s deadline, which beats the 60s floor.
	remaining := time.Until(deadline)
	if remaining < 70*time.Second || remaining > 90*time.Second {
		t.Errorf("deadline %s from now, want about 90s", remaining)
	}
}

func TestConvertTimeoutError(t *testing.T) {
	runner := &fakeRunner{
		err: errors.New("signal: killed"),
		onRun: func(ctx context.Context, name string, args []string) {
			<-ctx.Done()
		},
	}
	c := &Converter{runner: runner, sampleRate: 16000, timeoutFloor: time.Millisecond}

	err := c.Convert(context.Background(), "in.mp3", "out.wav", FallbackTier(-20), 0)
	if err == nil || !strings.Contains(err.Error(), "conversion timeout after") {
		t.Errorf("got %v, want timeout error", err)
	}
}

func TestConvertFailureRemovesOutput(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.wav")
	runner := &fakeRunner{
		err:    errors.New("exit status 1"),
		result: commandResult{Stderr: "Invalid data found when processing input", ExitCode: 1},
		onRun: func(ctx context.Context, name string, args []string) {
			os.WriteFile(outPath, []byte("partial"), 0o644)
		},
	}
	c := &Converter{runner: runner, sampleRate: 16000, timeoutFloor: time.Minute}

	err := c.Convert(context.Background(), "in.mp3", outPath, FallbackTier(-20), 0)
	if err == nil || !strings.Contains(err.Error(), "ffmpeg failed: Invalid data found") {
		t.Errorf("got %v, want ffmpeg stderr in error", err)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Error("partial output not removed")
	}
}
