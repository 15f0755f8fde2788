package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/porcej/njord/gps"
)

// ReplayConfig controls a GPX replay source.
type ReplayConfig struct {
	File       string
	Loop       bool    // start over after the last point
	HDOP       float64 // reported with every point
	Satellites int
	TAIPID     string
}

// Replay feeds recorded GPX track points to the buoy, one point per
// fetch. Speed and heading come from the following point.
type Replay struct {
	mu     sync.Mutex
	config ReplayConfig
	points []gps.TrackPoint
	index  int
	clock  func() time.Time
}

// NewReplay loads cfg.File.
func NewReplay(cfg ReplayConfig) (*Replay, error) {
	points, err := gps.ReadGPXFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load replay file: %w", err)
	}
	return NewReplayPoints(cfg, points), nil
}

// NewReplayPoints replays points already in memory.
func NewReplayPoints(cfg ReplayConfig, points []gps.TrackPoint) *Replay {
	if cfg.Satellites == 0 {
		cfg.Satellites = 8
	}
	if cfg.HDOP == 0 {
		cfg.HDOP = 1.0
	}
	return &Replay{config: cfg, points: points, clock: time.Now}
}

// Progress returns the next point index and the number of points.
func (r *Replay) Progress() (index, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index, len(r.points)
}

// Fetch implements Fetcher. The fix is stamped with the current time.
func (r *Replay) Fetch(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index >= len(r.points) {
		if !r.config.Loop || len(r.points) == 0 {
			return nil, ErrReplayFinished
		}
		r.index = 0
	}

	point := r.points[r.index]
	var speed, heading float64
	if r.index < len(r.points)-1 {
		speed, heading = gps.Motion(point, r.points[r.index+1])
	}
	r.index++

	return Snapshot{
		KeyFixTime:   r.clock().UnixMilli(),
		KeyLatitude:  point.Lat,
		KeyLongitude: point.Lon,
		KeyAltitude:  point.Elevation,
		KeyHeading:   heading,
		KeySpeed:     gps.MSToKMH(speed),
		KeyHDOP:      r.config.HDOP,
		KeyQuality:   1,
		KeySatCount:  r.config.Satellites,
		KeyTAIPID:    r.config.TAIPID,
	}, nil
}
