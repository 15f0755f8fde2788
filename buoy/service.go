package buoy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/porcej/njord/arbiter"
	"github.com/porcej/njord/gps"
	"github.com/porcej/njord/telemetry"
	"github.com/porcej/njord/transport"
)

// Service runs the buoy: every interval it fetches telemetry, decides on
// a position and sends it in the configured wire format.
type Service struct {
	mu        sync.RWMutex
	config    Config
	fetcher   telemetry.Fetcher
	engine    *arbiter.Engine
	sender    transport.Sender
	trackLog  *gps.TrackLog
	logger    *log.Logger
	verbose   bool
	callbacks []func(Report)

	cycleMu sync.Mutex // one cycle at a time

	// Control fields
	running   bool
	startTime time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	cycles, sent, skipped, failures uint64
	last                            *Report
}

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithLogger routes cycle logging to logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithVerbose logs every cycle decision, not only failures.
func WithVerbose(verbose bool) Option {
	return func(s *Service) { s.verbose = verbose }
}

// WithTrackLog records every sent position to a GPX track.
func WithTrackLog(l *gps.TrackLog) Option {
	return func(s *Service) { s.trackLog = l }
}

// NewService creates a buoy reading from fetcher and sending to sender.
// A nil sender discards messages.
func NewService(cfg Config, fetcher telemetry.Fetcher, engine *arbiter.Engine, sender transport.Sender, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	if engine == nil {
		return nil, ErrNoEngine
	}
	if sender == nil {
		sender = transport.Multi{}
	}

	s := &Service{
		config:  cfg,
		fetcher: fetcher,
		engine:  engine,
		sender:  sender,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Engine returns the arbitration engine, e.g. to swap the access point
// table or drop its cache.
func (s *Service) Engine() *arbiter.Engine {
	return s.engine
}

// AddCallback adds a callback function that will be called with each cycle report
func (s *Service) AddCallback(callback func(Report)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Start starts the cycle loop. The first cycle runs immediately.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.startTime = time.Now()

	go s.run(ctx, s.done, s.config.Interval)
	return nil
}

// Stop stops the cycle loop and waits for a cycle in progress to finish.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Done is closed when the running loop exits, either through Stop or
// because the telemetry source ran out. It is nil before Start.
func (s *Service) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// IsRunning returns whether the cycle loop is currently running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Close stops the loop if needed and releases the sender and track log.
func (s *Service) Close() error {
	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	var errs []error
	if s.trackLog != nil {
		errs = append(errs, s.trackLog.Close())
	}
	errs = append(errs, s.sender.Close())
	return errors.Join(errs...)
}

// run is the main cycle loop
func (s *Service) run(ctx context.Context, done chan struct{}, interval time.Duration) {
	defer func() {
		if s.trackLog != nil {
			if err := s.trackLog.Flush(); err != nil {
				s.logger.Printf("Failed to write GPX track: %v", err)
			}
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunCycle(ctx); errors.Is(err, telemetry.ErrReplayFinished) {
			s.logger.Printf("Replay finished")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle performs one fetch, arbitrate, encode and send cycle. A cycle
// without a trustworthy position sends nothing and is not an error.
func (s *Service) RunCycle(ctx context.Context) (Report, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	report := Report{Timestamp: time.Now()}
	err := s.cycle(ctx, cfg, &report)
	if err != nil {
		report.Error = err.Error()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, telemetry.ErrReplayFinished) {
			s.logger.Printf("Cycle failed: %v", err)
		}
	}
	s.record(&report, err)
	return report, err
}

func (s *Service) cycle(ctx context.Context, cfg Config, report *Report) error {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch telemetry: %w", err)
	}

	res, err := s.engine.Resolve(ctx, snap, s.fetcher)
	if err != nil {
		return err
	}
	report.Outcome = res.Outcome
	report.State = res.State
	report.AccessPoint = res.AccessPoint
	report.HDOP = res.HDOP
	report.Attempts = res.Attempts

	if !res.Outcome.Valid() {
		if s.verbose {
			s.logger.Printf("No valid position (HDOP %.1f, %d scan attempts)", res.HDOP, res.Attempts)
		}
		return nil
	}

	res.State.Talker = cfg.Talker
	msgs, err := res.State.Messages(cfg.MessageType)
	if err != nil {
		return err
	}
	if s.verbose {
		s.logger.Printf("Position from %s: %.6f, %.6f", res.Outcome, res.State.Latitude, res.State.Longitude)
	}

	var sendErrs []error
	for _, msg := range msgs {
		if err := s.sender.Send(msg); err != nil {
			sendErrs = append(sendErrs, err)
		}
	}
	if err := errors.Join(sendErrs...); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	report.Messages = msgs

	if s.trackLog != nil {
		if err := s.trackLog.Record(res.State); err != nil {
			s.logger.Printf("Failed to write GPX track: %v", err)
		}
	}
	return nil
}

func (s *Service) record(report *Report, err error) {
	s.mu.Lock()
	s.cycles++
	report.Cycle = s.cycles
	switch {
	case err != nil:
		s.failures++
	case report.Sent():
		s.sent++
	default:
		s.skipped++
	}
	s.last = report
	callbacks := slices.Clone(s.callbacks)
	s.mu.Unlock()

	for _, callback := range callbacks {
		go callback(*report) // Call async to avoid blocking
	}
}

// GetStatus returns the current buoy status
func (s *Service) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var elapsedTime time.Duration
	if s.running {
		elapsedTime = time.Since(s.startTime)
	}

	status := Status{
		Running:           s.running,
		StartTime:         s.startTime,
		ElapsedTime:       elapsedTime,
		Config:            s.config,
		Cycles:            s.cycles,
		Sent:              s.sent,
		Skipped:           s.skipped,
		Failures:          s.failures,
		LastReport:        s.last,
		KnownAccessPoints: s.engine.Table().Len(),
	}
	if ap, ok := s.engine.Cached(); ok {
		status.CachedAccessPoint = &ap
	}
	if s.trackLog != nil {
		status.TrackPoints = s.trackLog.Len()
	}
	if r, ok := s.fetcher.(interface{ Progress() (int, int) }); ok {
		status.ReplayIndex, status.ReplayTotal = r.Progress()
	}
	return status
}

// UpdateConfig updates the cycle configuration (can be called while running)
func (s *Service) UpdateConfig(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	oldInterval := s.config.Interval
	s.config = newConfig
	restart := s.running && oldInterval != newConfig.Interval
	s.mu.Unlock()

	// If the interval changed while running, restart the loop
	if restart {
		if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
		return s.Start()
	}
	return nil
}
