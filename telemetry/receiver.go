package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"go.bug.st/serial"

	"github.com/porcej/njord/gps"
)

// Receiver turns the NMEA stream of a locally attached GNSS receiver into
// snapshots carrying the same keys as the router database. Speed is
// published in km/h.
type Receiver struct {
	logger *log.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	date     nmea.Date
	fixed    bool
}

// NewReceiver creates a receiver that tags its fixes with taipID.
func NewReceiver(taipID string, logger *log.Logger) *Receiver {
	if logger == nil {
		logger = log.Default()
	}
	return &Receiver{
		logger:   logger,
		snapshot: Snapshot{KeyTAIPID: taipID},
	}
}

// OpenSerial opens a receiver port at 8N1.
func OpenSerial(port string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return p, nil
}

// Run consumes sentences from r until it fails or ctx is cancelled.
// Unparseable lines are skipped.
func (r *Receiver) Run(ctx context.Context, src io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(src)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errc <- err
			return
		}
		errc <- io.EOF
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			r.logger.Printf("GNSS receiver stream ended: %v", err)
			return err
		case line := <-lines:
			r.Ingest(line)
		}
	}
}

// Ingest applies a single NMEA line. It reports whether the line was used.
func (r *Receiver) Ingest(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return false
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch m := sentence.(type) {
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return false
		}
		r.date = m.Date
		r.snapshot[KeyLatitude] = m.Latitude
		r.snapshot[KeyLongitude] = m.Longitude
		r.snapshot[KeyHeading] = m.Course
		r.snapshot[KeySpeed] = gps.MSToKMH(gps.KnotsToMS(m.Speed))
		r.stamp(m.Time)
		r.fixed = true
	case nmea.GGA:
		quality, err := strconv.Atoi(m.FixQuality)
		if err != nil {
			return false
		}
		r.snapshot[KeyQuality] = quality
		r.snapshot[KeySatCount] = int(m.NumSatellites)
		r.snapshot[KeyHDOP] = m.HDOP
		r.snapshot[KeyAltitude] = m.Altitude
		if quality == 0 {
			return true
		}
		r.snapshot[KeyLatitude] = m.Latitude
		r.snapshot[KeyLongitude] = m.Longitude
		r.stamp(m.Time)
	default:
		return false
	}
	return true
}

// stamp records the fix time from the last known date and t. Must be
// called with mu held.
func (r *Receiver) stamp(t nmea.Time) {
	if !t.Valid || !r.date.Valid {
		return
	}
	year := 2000 + r.date.YY
	if r.date.YY >= 80 {
		year = 1900 + r.date.YY
	}
	fix := time.Date(year, time.Month(r.date.MM), r.date.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
	r.snapshot[KeyFixTime] = fix.UnixMilli()
}

// Fetch implements Fetcher.
func (r *Receiver) Fetch(ctx context.Context) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.fixed {
		return nil, ErrNoFix
	}
	return r.snapshot.Clone(), nil
}
