package arbiter

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/porcej/njord/gps"
	"github.com/porcej/njord/telemetry"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var knownAPs = []AccessPoint{
	{SSID: "Marina", BSSID: "aa:bb:cc:00:00:01", Latitude: 44.6488, Longitude: -63.5752, Description: "fuel dock"},
	{SSID: "Marina", BSSID: "aa:bb:cc:00:00:02", Latitude: 44.6490, Longitude: -63.5760},
	{SSID: "Yard", BSSID: "dd:ee:ff:00:00:01", Latitude: 44.7000, Longitude: -63.6000},
}

func gnssSnapshot(hdop float64) telemetry.Snapshot {
	return telemetry.Snapshot{
		telemetry.KeyFixTime:   testNow.Add(-2 * time.Second).UnixMilli(),
		telemetry.KeyLatitude:  44.65,
		telemetry.KeyLongitude: -63.58,
		telemetry.KeyAltitude:  3.5,
		telemetry.KeyHeading:   180.0,
		telemetry.KeySpeed:     36.0,
		telemetry.KeyHDOP:      hdop,
		telemetry.KeyQuality:   1,
		telemetry.KeySatCount:  7,
		telemetry.KeyTAIPID:    "42",
	}
}

func scanOf(bssids ...string) string {
	text := ""
	for _, b := range bssids {
		text += "SSID: x\nBSSID: " + b + "\nSignal: -60\n\n"
	}
	return text
}

func newTestEngine(t *testing.T, cfg Config, sleeps *int) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, NewTable(knownAPs),
		WithClock(func() time.Time { return testNow }),
		WithLogger(log.New(io.Discard, "", 0)),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps++
			}
			return ctx.Err()
		}),
	)
	if err != nil {
		t.Fatalf("NewEngine() returned error: %v", err)
	}
	return e
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"default", func(*Config) {}, nil},
		{"zero attempts", func(c *Config) { c.MaxScanAttempts = 0 }, ErrInvalidScanAttempts},
		{"negative delay", func(c *Config) { c.ScanDelay = -time.Second }, ErrInvalidScanDelay},
		{"inverted thresholds", func(c *Config) { c.ExcellentHDOP, c.PoorHDOP = 5, 2 }, ErrInvalidThresholds},
		{"unset poor threshold", func(c *Config) { c.ExcellentHDOP = 5 }, nil},
		{"speed unit", func(c *Config) { c.SpeedUnit = "furlongs" }, ErrInvalidSpeedUnit},
		{"no bands", func(c *Config) { c.Bands = nil }, ErrNoBands},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolveBaseline(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil)

	res, err := e.Resolve(context.Background(), gnssSnapshot(1.2), nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if res.Outcome != GPSAccepted {
		t.Fatalf("outcome = %v, want %v", res.Outcome, GPSAccepted)
	}
	s := res.State
	if s.Latitude != 44.65 || s.Longitude != -63.58 || s.Altitude != 3.5 {
		t.Errorf("position = %v,%v,%v", s.Latitude, s.Longitude, s.Altitude)
	}
	if s.Speed != 10 {
		t.Errorf("speed = %v m/s, want 10 (36 km/h)", s.Speed)
	}
	if s.Source != gps.SourceGPS3D || s.Mode != gps.ModeAutonomous || s.Age != gps.AgeFresh {
		t.Errorf("source/mode/age = %v/%v/%v", s.Source, s.Mode, s.Age)
	}
	if s.TAIPID != "0042" {
		t.Errorf("TAIP ID = %q, want 0042", s.TAIPID)
	}
	if s.SatellitesUsed != 7 || s.HDOP != 1.2 {
		t.Errorf("satellites/HDOP = %d/%v", s.SatellitesUsed, s.HDOP)
	}
	if !s.FixTime.Equal(testNow.Add(-2 * time.Second)) {
		t.Errorf("fix time = %v", s.FixTime)
	}
}

func TestResolveOldFix(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil)
	snap := gnssSnapshot(1)
	snap[telemetry.KeyFixTime] = testNow.Add(-time.Minute).UnixMilli()
	delete(snap, telemetry.KeyTAIPID)

	res, err := e.Resolve(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if res.State.Age != gps.AgeOld {
		t.Errorf("age = %v, want old", res.State.Age)
	}
	if res.State.TAIPID != gps.DefaultTAIPID {
		t.Errorf("TAIP ID = %q, want default", res.State.TAIPID)
	}
}

func TestResolveExcellentSkipsScan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExcellentHDOP = 1.0
	e := newTestEngine(t, cfg, nil)

	snap := gnssSnapshot(0.8)
	snap[telemetry.WifiScanKey("Marina", telemetry.Band2400)] = scanOf("aa:bb:cc:00:00:01")

	res, err := e.Resolve(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if res.Outcome != GPSExcellent {
		t.Errorf("outcome = %v, want %v", res.Outcome, GPSExcellent)
	}
	if res.AccessPoint != nil || res.Attempts != 0 {
		t.Errorf("excellent fix should not scan: %+v", res)
	}
	if res.State.Latitude != 44.65 {
		t.Errorf("latitude = %v, want GNSS value", res.State.Latitude)
	}
}

func TestResolveScannedAccessPoint(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil)

	snap := gnssSnapshot(3)
	snap[telemetry.WifiScanKey("Marina", telemetry.Band5400)] = scanOf("00:00:00:00:00:00", "AA:BB:CC:00:00:02")
	snap[telemetry.WifiScanKey("Yard", telemetry.Band2400)] = scanOf("dd:ee:ff:00:00:01")

	res, err := e.Resolve(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if res.Outcome != ScannedAccessPoint {
		t.Fatalf("outcome = %v, want %v", res.Outcome, ScannedAccessPoint)
	}
	if res.AccessPoint.BSSID != "aa:bb:cc:00:00:02" {
		t.Errorf("matched %q, want the first table SSID", res.AccessPoint.BSSID)
	}
	s := res.State
	if s.Latitude != 44.6490 || s.Longitude != -63.5760 {
		t.Errorf("position = %v,%v", s.Latitude, s.Longitude)
	}
	if s.Speed != 0 || s.Heading != 0 {
		t.Errorf("speed/heading = %v/%v, want 0/0", s.Speed, s.Heading)
	}
	if s.Source != gps.SourceUnknown || s.Age != gps.AgeFresh || s.Mode != gps.ModeManual {
		t.Errorf("source/age/mode = %v/%v/%v", s.Source, s.Age, s.Mode)
	}
	if !s.FixTime.Equal(testNow) {
		t.Errorf("fix time = %v, want now", s.FixTime)
	}
	if _, ok := e.Cached(); ok {
		t.Error("match cached with caching disabled")
	}
}

func TestResolvePoorFixRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoorHDOP = 4
	e := newTestEngine(t, cfg, nil)

	snap := gnssSnapshot(5)
	snap[telemetry.WifiScanKey("Marina", telemetry.Band2400)] = scanOf("11:22:33:44:55:66")

	res, err := e.Resolve(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if res.Outcome != NoValidPosition || res.Outcome.Valid() {
		t.Errorf("outcome = %v, want %v", res.Outcome, NoValidPosition)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}

	snap[telemetry.KeyHDOP] = 3.9
	res, err = e.Resolve(context.Background(), snap, nil)
	if err != nil || res.Outcome != GPSAccepted {
		t.Errorf("HDOP below poor threshold: %v, %v", res.Outcome, err)
	}
}

func TestResolveCacheAndIgnition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheMatches = true
	e := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	snap := gnssSnapshot(3)
	snap[telemetry.KeyIgnition] = "off"
	snap[telemetry.WifiScanKey("Yard", telemetry.Band2400)] = scanOf("dd:ee:ff:00:00:01")

	res, err := e.Resolve(ctx, snap, nil)
	if err != nil || res.Outcome != ScannedAccessPoint {
		t.Fatalf("first cycle: %v, %v", res.Outcome, err)
	}
	if ap, ok := e.Cached(); !ok || ap.SSID != "Yard" {
		t.Fatalf("cache = %+v, %v", ap, ok)
	}

	moved := gnssSnapshot(3)
	moved[telemetry.KeyIgnition] = "off"
	res, err = e.Resolve(ctx, moved, nil)
	if err != nil || res.Outcome != CachedAccessPoint {
		t.Fatalf("second cycle: %v, %v", res.Outcome, err)
	}
	if res.State.Latitude != 44.7 {
		t.Errorf("cached latitude = %v", res.State.Latitude)
	}

	// Ignition on: the cache is dropped, the scan runs again and finds
	// nothing, and the new match is not cached while ignition stays on.
	moved[telemetry.KeyIgnition] = "On"
	res, err = e.Resolve(ctx, moved, nil)
	if err != nil || res.Outcome != GPSAccepted || res.Attempts != 1 {
		t.Fatalf("ignition cycle: %+v, %v", res, err)
	}
	if _, ok := e.Cached(); ok {
		t.Error("cache survived ignition on")
	}

	snap[telemetry.KeyIgnition] = "on"
	res, err = e.Resolve(ctx, snap, nil)
	if err != nil || res.Outcome != ScannedAccessPoint {
		t.Fatalf("rescan: %v, %v", res.Outcome, err)
	}
	if _, ok := e.Cached(); ok {
		t.Error("match cached while ignition on")
	}
}

func TestResolveRetriesWithFreshTelemetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxScanAttempts = 3
	cfg.ScanDelay = time.Second
	sleeps := 0
	e := newTestEngine(t, cfg, &sleeps)

	fetches := 0
	fetch := telemetry.FetcherFunc(func(context.Context) (telemetry.Snapshot, error) {
		fetches++
		snap := gnssSnapshot(2)
		if fetches == 2 {
			snap[telemetry.WifiScanKey("Marina", telemetry.Band2400)] = scanOf("aa:bb:cc:00:00:01")
		}
		return snap, nil
	})

	res, err := e.Resolve(context.Background(), gnssSnapshot(2), fetch)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if res.Outcome != ScannedAccessPoint || res.Attempts != 3 {
		t.Errorf("outcome/attempts = %v/%d, want scanned/3", res.Outcome, res.Attempts)
	}
	if sleeps != 2 || fetches != 2 {
		t.Errorf("sleeps/fetches = %d/%d, want 2/2", sleeps, fetches)
	}
}

func TestResolveRetryExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxScanAttempts = 2
	sleeps := 0
	e := newTestEngine(t, cfg, &sleeps)

	fetch := telemetry.FetcherFunc(func(context.Context) (telemetry.Snapshot, error) {
		return gnssSnapshot(2), nil
	})
	res, err := e.Resolve(context.Background(), gnssSnapshot(2), fetch)
	if err != nil || res.Outcome != GPSAccepted || res.Attempts != 2 {
		t.Errorf("result = %+v, %v", res, err)
	}

	res, err = e.Resolve(context.Background(), gnssSnapshot(2), nil)
	if err != nil || res.Attempts != 1 {
		t.Errorf("nil fetcher should scan once: %+v, %v", res, err)
	}
}

func TestResolveRefetchError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxScanAttempts = 2
	e := newTestEngine(t, cfg, nil)

	boom := errors.New("router unreachable")
	fetch := telemetry.FetcherFunc(func(context.Context) (telemetry.Snapshot, error) {
		return nil, boom
	})
	if _, err := e.Resolve(context.Background(), gnssSnapshot(2), fetch); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestResolveIgnitionDuringExcellentFix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExcellentHDOP = 1.0
	cfg.CacheMatches = true
	e := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	parked := gnssSnapshot(3)
	parked[telemetry.KeyIgnition] = "off"
	parked[telemetry.WifiScanKey("Yard", telemetry.Band2400)] = scanOf("dd:ee:ff:00:00:01")
	if res, err := e.Resolve(ctx, parked, nil); err != nil || res.Outcome != ScannedAccessPoint {
		t.Fatalf("parked cycle: %v, %v", res.Outcome, err)
	}

	driving := gnssSnapshot(0.8)
	driving[telemetry.KeyIgnition] = "on"
	res, err := e.Resolve(ctx, driving, nil)
	if err != nil || res.Outcome != GPSExcellent {
		t.Fatalf("driving cycle: %v, %v", res.Outcome, err)
	}
	if _, ok := e.Cached(); ok {
		t.Fatal("cache survived an ignition-on cycle with an excellent fix")
	}

	elsewhere := gnssSnapshot(3)
	elsewhere[telemetry.KeyIgnition] = "off"
	elsewhere[telemetry.KeyLatitude] = 10.0
	res, err = e.Resolve(ctx, elsewhere, nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if res.Outcome != GPSAccepted || res.State.Latitude != 10.0 {
		t.Errorf("outcome = %v at latitude %v, want %v at 10", res.Outcome, res.State.Latitude, GPSAccepted)
	}
}

func TestResolveIgnitionWrongType(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil)
	snap := gnssSnapshot(2)
	snap[telemetry.KeyIgnition] = []any{"on"}

	if _, err := e.Resolve(context.Background(), snap, nil); !errors.Is(err, telemetry.ErrFieldType) {
		t.Errorf("error = %v, want ErrFieldType", err)
	}
}

func TestResolveMissingField(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil)
	snap := gnssSnapshot(1)
	delete(snap, telemetry.KeyHDOP)

	_, err := e.Resolve(context.Background(), snap, nil)
	if !errors.Is(err, telemetry.ErrMissingField) {
		t.Fatalf("error = %v, want ErrMissingField", err)
	}
	var missing *telemetry.MissingFieldError
	if !errors.As(err, &missing) || missing.Key != telemetry.KeyHDOP {
		t.Errorf("missing key = %+v", missing)
	}
}

func TestResolveMalformedScan(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil)
	snap := gnssSnapshot(2)
	snap[telemetry.WifiScanKey("Marina", telemetry.Band2400)] = "not a scan"

	if _, err := e.Resolve(context.Background(), snap, nil); !errors.Is(err, ErrMalformedScan) {
		t.Errorf("error = %v, want ErrMalformedScan", err)
	}
}

func TestSetTableDropsCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheMatches = true
	e := newTestEngine(t, cfg, nil)

	snap := gnssSnapshot(2)
	snap[telemetry.WifiScanKey("Yard", telemetry.Band5400)] = scanOf("dd:ee:ff:00:00:01")
	if _, err := e.Resolve(context.Background(), snap, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Cached(); !ok {
		t.Fatal("expected a cached access point")
	}

	e.SetTable(NewTable(knownAPs[:1]))
	if _, ok := e.Cached(); ok {
		t.Error("SetTable kept the cache")
	}
	if e.Table().Len() != 1 {
		t.Errorf("table length = %d, want 1", e.Table().Len())
	}
}

func TestOutcomeString(t *testing.T) {
	if GPSExcellent.String() != "excellent GNSS fix" {
		t.Errorf("String() = %q", GPSExcellent.String())
	}
	if Outcome(42).String() != "Outcome(42)" {
		t.Errorf("String() = %q", Outcome(42).String())
	}
}
