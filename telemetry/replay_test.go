package telemetry

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/porcej/njord/gps"
)

func testPoints() []gps.TrackPoint {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return []gps.TrackPoint{
		{Lat: 0, Lon: 0, Time: start},
		{Lat: 0, Lon: 0.001, Time: start.Add(10 * time.Second)},
		{Lat: 0.001, Lon: 0.001, Time: start.Add(20 * time.Second)},
	}
}

func TestReplayFetch(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := NewReplayPoints(ReplayConfig{TAIPID: "7"}, testPoints())
	r.clock = func() time.Time { return now }

	snapshot, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() returned error: %v", err)
	}

	heading, _ := snapshot.Float(KeyHeading)
	if math.Abs(heading-90) > 1e-6 {
		t.Errorf("heading = %v, want 90", heading)
	}
	speed, _ := snapshot.Float(KeySpeed)
	want := gps.MSToKMH(gps.Distance(0, 0, 0, 0.001) / 10)
	if math.Abs(speed-want) > 1e-9 {
		t.Errorf("speed = %v km/h, want %v", speed, want)
	}
	if ms, _ := snapshot.Int(KeyFixTime); ms != now.UnixMilli() {
		t.Errorf("fix time = %v, want %v", ms, now.UnixMilli())
	}
	if hdop, _ := snapshot.Float(KeyHDOP); hdop != 1.0 {
		t.Errorf("hdop = %v, want default 1.0", hdop)
	}
	if index, total := r.Progress(); index != 1 || total != 3 {
		t.Errorf("Progress() = %d/%d, want 1/3", index, total)
	}
}

func TestReplayFinishes(t *testing.T) {
	r := NewReplayPoints(ReplayConfig{}, testPoints())
	for i := 0; i < 3; i++ {
		if _, err := r.Fetch(context.Background()); err != nil {
			t.Fatalf("Fetch() %d returned error: %v", i, err)
		}
	}
	if _, err := r.Fetch(context.Background()); !errors.Is(err, ErrReplayFinished) {
		t.Errorf("Fetch() past the end error = %v, want %v", err, ErrReplayFinished)
	}
}

func TestReplayLoops(t *testing.T) {
	r := NewReplayPoints(ReplayConfig{Loop: true}, testPoints())
	for i := 0; i < 7; i++ {
		if _, err := r.Fetch(context.Background()); err != nil {
			t.Fatalf("Fetch() %d returned error: %v", i, err)
		}
	}
	if index, _ := r.Progress(); index != 1 {
		t.Errorf("Progress() index = %d, want 1", index)
	}
}

func TestNewReplayFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.gpx")
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><name>t</name><trkseg>
    <trkpt lat="59.9" lon="10.7"><ele>3</ele><time>2024-01-15T10:00:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewReplay(ReplayConfig{File: path})
	if err != nil {
		t.Fatalf("NewReplay() returned error: %v", err)
	}
	snapshot, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if alt, _ := snapshot.Float(KeyAltitude); alt != 3 {
		t.Errorf("altitude = %v, want 3", alt)
	}

	if _, err := NewReplay(ReplayConfig{File: filepath.Join(t.TempDir(), "missing.gpx")}); err == nil {
		t.Error("NewReplay() with missing file should fail")
	}
}
