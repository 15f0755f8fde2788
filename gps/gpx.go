package gps

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// GPX is the root of a GPX 1.1 document
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Track   Track    `xml:"trk"`
	Routes  []Route  `xml:"rte"`
}

type Track struct {
	Name    string       `xml:"name"`
	Segment TrackSegment `xml:"trkseg"`
}

type TrackSegment struct {
	Points []TrackPoint `xml:"trkpt"`
}

type Route struct {
	Name   string       `xml:"name"`
	Points []TrackPoint `xml:"rtept"`
}

// TrackLog records every reported position as a GPX track. The file is
// rewritten in full every FlushEvery points and on Close.
type TrackLog struct {
	mu         sync.Mutex
	file       *os.File
	doc        GPX
	FlushEvery int
}

// NewTrackLog creates (or truncates) filename.
func NewTrackLog(filename, trackName string) (*TrackLog, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPX file %s: %w", filename, err)
	}
	return &TrackLog{
		file: file,
		doc: GPX{
			Version: "1.1",
			Creator: "njord",
			Xmlns:   "http://www.topografix.com/GPX/1/1",
			Track:   Track{Name: trackName},
		},
		FlushEvery: 10,
	}, nil
}

// Record appends the position of s, flushing when the batch is full.
func (l *TrackLog) Record(s *State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.doc.Track.Segment.Points = append(l.doc.Track.Segment.Points, TrackPoint{
		Lat:       s.Latitude,
		Lon:       s.Longitude,
		Elevation: s.Altitude,
		Time:      s.FixTime.UTC(),
	})
	if l.file != nil && l.FlushEvery > 0 && len(l.doc.Track.Segment.Points)%l.FlushEvery == 0 {
		return l.flush()
	}
	return nil
}

// Len returns the number of recorded points.
func (l *TrackLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.doc.Track.Segment.Points)
}

func (l *TrackLog) flush() error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek GPX file: %w", err)
	}
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate GPX file: %w", err)
	}
	if _, err := l.file.WriteString(xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	encoder := xml.NewEncoder(l.file)
	encoder.Indent("", "  ")
	if err := encoder.Encode(&l.doc); err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}
	return l.file.Sync()
}

// Flush writes the current track to disk.
func (l *TrackLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.flush()
}

// Close flushes and closes the file
func (l *TrackLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.flush()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}

// ReadGPXFile reads and parses a GPX file, returning the track points
// of its track, or of its first route when the track is empty.
func ReadGPXFile(filename string) ([]TrackPoint, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPX file %s: %w", filename, err)
	}
	defer file.Close()

	points, err := ReadGPX(file)
	if err != nil {
		return nil, fmt.Errorf("GPX file %s: %w", filename, err)
	}
	return points, nil
}

// ReadGPX parses a GPX document from r.
func ReadGPX(r io.Reader) ([]TrackPoint, error) {
	var doc GPX
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	points := doc.Track.Segment.Points
	if len(points) == 0 && len(doc.Routes) > 0 {
		points = doc.Routes[0].Points
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no track points or route points found")
	}
	return points, nil
}

// Motion derives speed (m/s) and heading (degrees) between two track
// points. Without usable timestamps a one second spacing is assumed.
func Motion(from, to TrackPoint) (speed, heading float64) {
	elapsed := to.Time.Sub(from.Time).Seconds()
	if from.Time.IsZero() || to.Time.IsZero() || elapsed <= 0 {
		elapsed = time.Second.Seconds()
	}
	return Distance(from.Lat, from.Lon, to.Lat, to.Lon) / elapsed, Bearing(from.Lat, from.Lon, to.Lat, to.Lon)
}
