package audio

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Thresholds are the quality-score boundaries between processing tiers.
// Scores above Light get minimal filtering, scores above Moderate get the
// standard chain, everything else gets the aggressive restoration chain.
type Thresholds struct {
	Light    float64 `yaml:"light"`
	Moderate float64 `yaml:"moderate"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Light: 70, Moderate: 40}
}

// LoadThresholds reads tier boundaries from a YAML file. An empty path
// returns the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	if path == "" {
		return DefaultThresholds(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read tier config: %w", err)
	}
	th := DefaultThresholds()
	if err := yaml.Unmarshal(data, &th); err != nil {
		return Thresholds{}, fmt.Errorf("parse tier config %s: %w", path, err)
	}
	if err := th.Validate(); err != nil {
		return Thresholds{}, fmt.Errorf("tier config %s: %w", path, err)
	}
	return th, nil
}

func (t Thresholds) Validate() error {
	if t.Moderate <= 0 || t.Light <= t.Moderate {
		return fmt.Errorf("thresholds must satisfy light > moderate > 0, got light=%g moderate=%g", t.Light, t.Moderate)
	}
	return nil
}

// Tier is a named ffmpeg filter chain chosen from the quality score.
type Tier struct {
	Name    string
	Filters []string
}

func (t Tier) FilterChain() string {
	return strings.Join(t.Filters, ",")
}

// SelectTier maps a 0-100 quality score onto a processing tier.
// targetLoudness is the integrated loudness handed to loudnorm.
func SelectTier(score, targetLoudness float64, th Thresholds) Tier {
	loudnorm := loudnormFilter(targetLoudness)
	switch {
	case score > th.Light:
		return Tier{
			Name: "TIER1-CLEAN",
			Filters: []string{
				"highpass=f=300:poles=2",
				"lowpass=f=3400:poles=2",
				"afftdn=nf=-20:nt=w",
				"speechnorm=peak=0.95:expansion=2:compression=2",
				loudnorm,
			},
		}
	case score > th.Moderate:
		return Tier{
			Name: "TIER2-MODERATE",
			Filters: []string{
				"adeclick=threshold=0.1",
				"highpass=f=300:poles=2",
				"afwtdn=percent=75:profile=true:adaptive=true",
				"afftdn=nf=-23:nt=w",
				"lowpass=f=3400:poles=2",
				"equalizer=f=1000:width_type=o:width=1.5:g=3",
				"speechnorm=peak=0.95:expansion=2:compression=2",
				"agate=threshold=0.02:release=100",
				loudnorm,
			},
		}
	default:
		return Tier{
			Name: "TIER3-POOR",
			Filters: []string{
				"adeclick=threshold=0.1",
				"highpass=f=300:poles=2",
				"afwtdn=percent=85:profile=true:adaptive=true:softness=2",
				"afftdn=nf=-25:nt=w:tn=true",
				"anlmdn=s=0.00005:p=0.002:r=0.006:m=15",
				"lowpass=f=3400:poles=2",
				"equalizer=f=1000:width_type=o:width=1.5:g=4",
				"acompressor=threshold=-24dB:ratio=4:attack=5:release=50:makeup=auto",
				"speechnorm=peak=0.95:expansion=3:compression=3",
				"agate=threshold=0.03:release=80",
				loudnorm,
			},
		}
	}
}

// FallbackTier is the conservative chain used when analysis fails and no
// quality score is available.
func FallbackTier(targetLoudness float64) Tier {
	return Tier{
		Name:    "FALLBACK",
		Filters: []string{loudnormFilter(targetLoudness), "afftdn=nf=-20"},
	}
}

func loudnormFilter(target float64) string {
	return fmt.Sprintf("loudnorm=I=%g:LRA=11:TP=-1.5", target)
}
