package audio

import (
	"testing"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/calls"
)

func TestHierarchicalKey(t *testing.T) {
	started := time.Date(2023, 12, 13, 21, 20, 0, 0, time.UTC)
	got := HierarchicalKey("calls", "a1b2c3", "7207-1702500000", started)
	want := "calls/playlist_id=a1b2c3/2023/12/13/call_7207-1702500000.wav"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Partition date comes from the UTC clock, not the local zone.
	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2024, 3, 1, 22, 30, 0, 0, est)
	got = HierarchicalKey("calls", "a1b2c3", "7207-1709350200", late)
	want = "calls/playlist_id=a1b2c3/2024/03/02/call_7207-1709350200.wav"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLegacyKey(t *testing.T) {
	if got := LegacyKey("calls", "7207-1702500000"); got != "calls/7207-1702500000.wav" {
		t.Errorf("got %q", got)
	}
}

func TestObjectMetadata(t *testing.T) {
	started := time.Date(2023, 12, 13, 21, 20, 0, 0, time.UTC)
	tgid := int64(441)
	feedID := int64(7207)
	call := &calls.Call{
		CallUID:      "7207-1702500000",
		PlaylistUUID: "a1b2c3",
		StartedAt:    &started,
		TGID:         &tgid,
		FeedID:       &feedID,
		DurationMS:   2250,
	}

	md := ObjectMetadata(call)
	want := map[string]string{
		"playlist_id":   "a1b2c3",
		"timestamp_utc": "2023-12-13T21:20:00Z",
		"call_id":       "7207-1702500000",
		"talkgroup":     "441",
		"duration_ms":   "2250",
		"codec":         "pcm_s16le",
		"source_feed":   "7207",
	}
	for k, v := range want {
		if md[k] != v {
			t.Errorf("%s = %q, want %q", k, md[k], v)
		}
	}
}

func TestObjectMetadataMissingFields(t *testing.T) {
	md := ObjectMetadata(&calls.Call{CallUID: "x-1", PlaylistUUID: "p"})
	for _, k := range []string{"timestamp_utc", "talkgroup", "source_feed"} {
		if md[k] != "" {
			t.Errorf("%s = %q, want empty", k, md[k])
		}
	}
	if md["duration_ms"] != "0" {
		t.Errorf("duration_ms = %q, want 0", md["duration_ms"])
	}
}
