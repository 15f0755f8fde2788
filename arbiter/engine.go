package arbiter

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/porcej/njord/gps"
	"github.com/porcej/njord/telemetry"
)

// SpeedUnit is the unit of the telemetry speed field.
type SpeedUnit string

const (
	SpeedMS    SpeedUnit = "ms"
	SpeedKMH   SpeedUnit = "kmh"
	SpeedKnots SpeedUnit = "knots"
	SpeedMPH   SpeedUnit = "mph"
)

// Config holds the arbitration policy
type Config struct {
	ExcellentHDOP   float64       // HDOP below this skips the WiFi lookup; <= 0 disables
	PoorHDOP        float64       // HDOP at or above this rejects the fix; <= 0 disables
	MaxScanAttempts int           // WiFi lookups per cycle
	ScanDelay       time.Duration // pause before each repeated lookup
	CacheMatches    bool          // remember the last matched access point
	Bands           []string      // scan bands, searched in order
	SpeedUnit       SpeedUnit     // unit of the telemetry speed field
}

// DefaultConfig returns a policy that always prefers a visible known
// access point and otherwise trusts the GNSS fix.
func DefaultConfig() Config {
	return Config{
		MaxScanAttempts: 1,
		Bands:           append([]string(nil), telemetry.Bands...),
		SpeedUnit:       SpeedKMH,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if c.MaxScanAttempts < 1 {
		return ErrInvalidScanAttempts
	}
	if c.ScanDelay < 0 {
		return ErrInvalidScanDelay
	}
	if c.ExcellentHDOP > 0 && c.PoorHDOP > 0 && c.ExcellentHDOP > c.PoorHDOP {
		return ErrInvalidThresholds
	}
	switch c.SpeedUnit {
	case SpeedMS, SpeedKMH, SpeedKnots, SpeedMPH:
	default:
		return ErrInvalidSpeedUnit
	}
	if len(c.Bands) == 0 {
		return ErrNoBands
	}
	return nil
}

// Outcome is how a cycle's position was decided.
type Outcome int

const (
	NoValidPosition Outcome = iota
	GPSExcellent
	CachedAccessPoint
	ScannedAccessPoint
	GPSAccepted
)

var outcomeNames = [...]string{
	NoValidPosition:    "no valid position",
	GPSExcellent:       "excellent GNSS fix",
	CachedAccessPoint:  "cached access point",
	ScannedAccessPoint: "scanned access point",
	GPSAccepted:        "GNSS fix",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Valid reports whether the outcome carries a position worth sending.
func (o Outcome) Valid() bool {
	return o != NoValidPosition
}

// MarshalText renders the outcome name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for i, name := range outcomeNames {
		if name == string(text) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Result is the decision of one cycle.
type Result struct {
	Outcome     Outcome
	State       *gps.State   // the baseline fix when Outcome is NoValidPosition
	AccessPoint *AccessPoint // set for access point outcomes
	HDOP        float64
	Attempts    int // WiFi lookups performed
}

// Engine decides, cycle by cycle, whether the GNSS fix or a known access
// point locates the buoy. It owns the one-slot access point cache.
type Engine struct {
	config Config
	logger *log.Logger
	clock  func() time.Time
	sleep  func(context.Context, time.Duration) error

	cycle sync.Mutex // serializes Resolve

	mu       sync.Mutex
	table    *Table
	cached   *AccessPoint
	ignition bool
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger routes decisions to logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSleep replaces the pause between WiFi lookups.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// NewEngine creates an engine searching table under cfg.
func NewEngine(cfg Config, table *Table, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		config: cfg,
		logger: log.Default(),
		clock:  time.Now,
		sleep:  sleepContext,
		table:  table,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config returns the engine's policy.
func (e *Engine) Config() Config {
	return e.config
}

// SetTable swaps the known access point table, e.g. after a refresh.
// The cached match is dropped.
func (e *Engine) SetTable(table *Table) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table = table
	e.cached = nil
}

// Table returns the current known access point table.
func (e *Engine) Table() *Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table
}

// Cached returns the cached access point, if any.
func (e *Engine) Cached() (AccessPoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cached == nil {
		return AccessPoint{}, false
	}
	return *e.cached, true
}

// InvalidateCache forgets the cached access point.
func (e *Engine) InvalidateCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cached = nil
}

// Resolve runs one arbitration cycle over snap. When more than one WiFi
// lookup is configured, fetch supplies fresh telemetry for each repeat;
// a nil fetch limits the cycle to one lookup.
//
// Missing telemetry fields and malformed scan text are errors. A cycle
// that cannot trust any position is not: it returns NoValidPosition.
func (e *Engine) Resolve(ctx context.Context, snap telemetry.Snapshot, fetch telemetry.Fetcher) (Result, error) {
	e.cycle.Lock()
	defer e.cycle.Unlock()

	state, hdop, err := e.baseline(snap)
	if err != nil {
		return Result{}, err
	}
	result := Result{State: state, HDOP: hdop}

	// Ignition is observed on every cycle, including excellent fixes, so
	// a cache set while parked never outlives a drive.
	if err := e.observeIgnition(snap); err != nil {
		return Result{}, err
	}

	if e.config.ExcellentHDOP > 0 && hdop < e.config.ExcellentHDOP {
		result.Outcome = GPSExcellent
		return result, nil
	}

	if e.config.CacheMatches {
		if ap, ok := e.Cached(); ok {
			if err := e.override(state, ap); err != nil {
				return Result{}, err
			}
			result.Outcome = CachedAccessPoint
			result.AccessPoint = &ap
			return result, nil
		}
	}

	attempts := e.config.MaxScanAttempts
	if fetch == nil {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, e.config.ScanDelay); err != nil {
				return Result{}, err
			}
			if snap, err = fetch.Fetch(ctx); err != nil {
				return Result{}, fmt.Errorf("refetch for scan attempt %d: %w", attempt, err)
			}
			if state, hdop, err = e.baseline(snap); err != nil {
				return Result{}, err
			}
			result.State, result.HDOP = state, hdop
			if err := e.observeIgnition(snap); err != nil {
				return Result{}, err
			}
		}
		result.Attempts = attempt

		ap, found, err := e.match(snap)
		if err != nil {
			return Result{}, err
		}
		if !found {
			continue
		}

		if err := e.override(state, ap); err != nil {
			return Result{}, err
		}
		if e.config.CacheMatches {
			e.remember(ap)
		}
		result.Outcome = ScannedAccessPoint
		result.AccessPoint = &ap
		return result, nil
	}

	if e.config.PoorHDOP <= 0 || hdop < e.config.PoorHDOP {
		result.Outcome = GPSAccepted
		return result, nil
	}
	result.Outcome = NoValidPosition
	return result, nil
}

// baseline builds the GNSS state of snap.
func (e *Engine) baseline(snap telemetry.Snapshot) (*gps.State, float64, error) {
	fixTime, err := snap.Int(telemetry.KeyFixTime)
	if err != nil {
		return nil, 0, err
	}
	lat, err := snap.Float(telemetry.KeyLatitude)
	if err != nil {
		return nil, 0, err
	}
	lon, err := snap.Float(telemetry.KeyLongitude)
	if err != nil {
		return nil, 0, err
	}
	heading, err := snap.Float(telemetry.KeyHeading)
	if err != nil {
		return nil, 0, err
	}
	speed, err := snap.Float(telemetry.KeySpeed)
	if err != nil {
		return nil, 0, err
	}
	hdop, err := snap.Float(telemetry.KeyHDOP)
	if err != nil {
		return nil, 0, err
	}
	quality, err := snap.Int(telemetry.KeyQuality)
	if err != nil {
		return nil, 0, err
	}
	satellites, err := snap.Int(telemetry.KeySatCount)
	if err != nil {
		return nil, 0, err
	}

	taipID := gps.DefaultTAIPID
	if snap.Has(telemetry.KeyTAIPID) {
		if taipID, err = snap.String(telemetry.KeyTAIPID); err != nil {
			return nil, 0, err
		}
	}

	state := gps.NewStateWithClock(e.clock)
	update := gps.Update{
		FixTime:   gps.Ptr(fixTime),
		Latitude:  gps.Ptr(lat),
		Longitude: gps.Ptr(lon),
		Heading:   gps.Ptr(heading),
		TAIPID:    gps.Ptr(taipID),
		Mode:      gps.Ptr(DeriveMode(int(quality))),
		Source:    gps.Ptr(DeriveSource(int(quality), int(satellites))),
	}
	switch e.config.SpeedUnit {
	case SpeedMS:
		update.SpeedMS = gps.Ptr(speed)
	case SpeedKnots:
		update.SpeedKnots = gps.Ptr(speed)
	case SpeedMPH:
		update.SpeedMPH = gps.Ptr(speed)
	default:
		update.SpeedKMH = gps.Ptr(speed)
	}
	if err := state.Set(update); err != nil {
		return nil, 0, err
	}

	state.Age = gps.AgeOf(state.FixTime, e.clock())
	state.FixQuality = int(quality)
	state.SatellitesUsed = int(satellites)
	state.SatellitesInView = int(satellites)
	state.HDOP = hdop
	if snap.Has(telemetry.KeyAltitude) {
		if state.Altitude, err = snap.Float(telemetry.KeyAltitude); err != nil {
			return nil, 0, err
		}
	}
	return state, hdop, nil
}

// observeIgnition drops the cache whenever ignition reads "on". A missing
// ignition key reads as off; a value that is not a string is an error.
func (e *Engine) observeIgnition(snap telemetry.Snapshot) error {
	on := false
	if snap.Has(telemetry.KeyIgnition) {
		status, err := snap.String(telemetry.KeyIgnition)
		if err != nil {
			return err
		}
		on = strings.EqualFold(strings.TrimSpace(status), "on")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if on && !e.ignition {
		e.logger.Printf("ignition on, dropping cached access point")
	}
	e.ignition = on
	if on {
		e.cached = nil
	}
	return nil
}

func (e *Engine) remember(ap AccessPoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ignition {
		return
	}
	e.cached = &ap
}

// match searches the scan text of snap for a known access point: SSIDs in
// table order, then bands in configured order, then scan blocks in order.
func (e *Engine) match(snap telemetry.Snapshot) (AccessPoint, bool, error) {
	table := e.Table()
	for _, ssid := range table.SSIDs() {
		for _, band := range e.config.Bands {
			key := telemetry.WifiScanKey(ssid, band)
			if !snap.Has(key) {
				continue
			}
			text, err := snap.String(key)
			if err != nil {
				return AccessPoint{}, false, err
			}
			entries, err := ParseScan(text)
			if err != nil {
				return AccessPoint{}, false, fmt.Errorf("%s: %w", key, err)
			}
			for _, entry := range entries {
				if ap, ok := table.Lookup(ssid, entry.BSSID()); ok {
					return ap, true, nil
				}
			}
		}
	}
	return AccessPoint{}, false, nil
}

// override places the state at ap: stationary, manual mode, fresh data of
// unknown source, stamped now.
func (e *Engine) override(state *gps.State, ap AccessPoint) error {
	err := state.Set(gps.Update{
		Latitude:  gps.Ptr(ap.Latitude),
		Longitude: gps.Ptr(ap.Longitude),
		Heading:   gps.Ptr(0.0),
		SpeedMS:   gps.Ptr(0.0),
		Source:    gps.Ptr(gps.SourceUnknown),
		Age:       gps.Ptr(gps.AgeFresh),
		Mode:      gps.Ptr(gps.ModeManual),
	})
	if err != nil {
		return err
	}
	state.FixQuality = 7 // manual input
	return nil
}
