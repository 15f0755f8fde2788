package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/porcej/njord/buoy"
	"github.com/porcej/njord/config"
	"github.com/porcej/njord/gps"
	"github.com/porcej/njord/web"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

type options struct {
	configFile  string
	knownAPs    string
	configURL   string
	aosURL      string
	gateway     bool
	udpPort     int
	stdout      bool
	tcpHost     string
	tcpPort     int
	username    string
	password    string
	messageType string
	interval    time.Duration
	replay      string
	receiver    string
	web         string
	gpx         bool
	verbose     bool
	quiet       bool
	once        bool
	showVersion bool

	set map[string]bool // flags given on the command line
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("njord", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&o.showVersion, "version", false, "Show version information and exit")
	fs.StringVar(&o.configFile, "config", "", "YAML configuration file")
	fs.StringVar(&o.knownAPs, "known-aps", "data/config.json", "Known access point JSON file")
	fs.StringVar(&o.configURL, "config-url", "", "URL to download newer known access point files from")
	fs.StringVar(&o.aosURL, "aos-url", "https://192.168.1.1", "AOS API base URL, or a recorded response file")
	fs.BoolVar(&o.gateway, "gateway", false, "Use the network gateway as the AOS API host (overrides -aos-url)")
	fs.IntVar(&o.udpPort, "udp-port", 21000, "UDP port for position broadcasts")
	fs.BoolVar(&o.stdout, "stdout", false, "Print position messages to standard output")
	fs.StringVar(&o.tcpHost, "tcp-host", "", "TCP server to send position messages to")
	fs.IntVar(&o.tcpPort, "tcp-port", 9011, "TCP port for position messages")
	fs.StringVar(&o.username, "username", "", "AOS username (overrides the known access point file)")
	fs.StringVar(&o.password, "password", "", "AOS password (overrides the known access point file)")
	fs.StringVar(&o.messageType, "message-type", string(gps.MessageTAIPPV), "Message format: TAIP_PV, NMEA or NMEA_RMC")
	fs.DurationVar(&o.interval, "interval", time.Second, "Time between position reports")
	fs.StringVar(&o.replay, "replay", "", "GPX file to replay instead of reading the router")
	fs.StringVar(&o.receiver, "receiver", "", "Serial port of a local NMEA receiver to read instead of the router")
	fs.StringVar(&o.web, "web", "", "Serve the status API on this address (e.g. :8080)")
	fs.BoolVar(&o.gpx, "gpx", false, "Record sent positions to a GPX track file with timestamp-based filename")
	fs.BoolVar(&o.verbose, "verbose", false, "Log every cycle decision")
	fs.BoolVar(&o.quiet, "quiet", false, "Suppress info messages")
	fs.BoolVar(&o.once, "once", false, "Run a single cycle and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: njord [options]\n")
		fmt.Fprintf(stderr, "\nNJORD GNSS buoy\n")
		fmt.Fprintf(stderr, "Reports the router's GNSS position, or the surveyed position of a known WiFi access point in range.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cfg *config.Config, o options) {
	if o.set["known-aps"] {
		cfg.KnownAPs.Path = o.knownAPs
	}
	if o.set["config-url"] {
		cfg.KnownAPs.URL = o.configURL
	}
	if o.set["aos-url"] {
		cfg.AOS.URL = o.aosURL
	}
	if o.gateway {
		cfg.AOS.Gateway = true
	}
	if o.set["username"] {
		cfg.AOS.Username = o.username
	}
	if o.set["password"] {
		cfg.AOS.Password = o.password
	}
	if o.set["udp-port"] {
		cfg.UDP.Enable = true
		cfg.UDP.Dest = fmt.Sprintf("255.255.255.255:%d", o.udpPort)
	}
	if o.stdout {
		cfg.Stdout.Enable = true
	}
	if o.tcpHost != "" {
		cfg.TCP.Enable = true
		cfg.TCP.Dest = fmt.Sprintf("%s:%d", o.tcpHost, o.tcpPort)
	}
	if o.set["message-type"] {
		cfg.Output.MessageType = o.messageType
	}
	if o.set["interval"] {
		cfg.Output.Interval = o.interval
	}
	if o.replay != "" {
		cfg.Replay.Enable = true
		cfg.Replay.Path = o.replay
	}
	if o.receiver != "" {
		cfg.Receiver.Enable = true
		cfg.Receiver.Port = o.receiver
	}
	if o.web != "" {
		cfg.Web.Enable = true
		cfg.Web.Listen = o.web
	}
	if o.gpx {
		// Always generate timestamp-based filename when -gpx flag is used
		cfg.GPX.Enable = true
		cfg.GPX.Path = fmt.Sprintf("%s.gpx", time.Now().Format("20060102_150405"))
	}
}

func versionString() string {
	if Version != "dev" {
		return "v" + Version
	}
	return Commit
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintln(stdout, versionString())
		return nil
	}

	// Log to stderr so it doesn't interfere with stdout output
	logger := log.New(stderr, "", log.LstdFlags)
	if o.quiet {
		logger.SetOutput(io.Discard)
	}

	cfg := config.Default()
	if o.configFile != "" {
		if cfg, err = config.Load(o.configFile); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	applyFlags(&cfg, o)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	known := loadKnownAPs(ctx, cfg, logger)
	logger.Printf("Loaded %d known access points from %s", known.Table().Len(), cfg.KnownAPs.Path)

	fetcher, closeSource, err := buildFetcher(ctx, cfg, known, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	engine, err := buildEngine(cfg, known, logger)
	if err != nil {
		return err
	}

	senders, err := buildSenders(ctx, cfg, stdout, logger)
	if err != nil {
		return err
	}

	opts := []buoy.Option{buoy.WithLogger(logger), buoy.WithVerbose(o.verbose)}
	if cfg.GPX.Enable {
		track, err := gps.NewTrackLog(cfg.GPX.Path, cfg.GPX.TrackName)
		if err != nil {
			senders.Close()
			return err
		}
		logger.Printf("GPX output: %s", cfg.GPX.Path)
		opts = append(opts, buoy.WithTrackLog(track))
	}

	svc, err := buoy.NewService(buoy.Config{
		Interval:    cfg.Output.Interval,
		MessageType: gps.MessageType(cfg.Output.MessageType),
		Talker:      gps.Talker(cfg.Output.Talker),
	}, fetcher, engine, senders, opts...)
	if err != nil {
		senders.Close()
		return err
	}
	defer svc.Close()

	if o.once {
		report, err := svc.RunCycle(ctx)
		if err != nil {
			return err
		}
		logger.Printf("Cycle outcome: %s", report.Outcome)
		return nil
	}

	if cfg.KnownAPs.URL != "" && cfg.KnownAPs.Refresh > 0 {
		go refreshKnownAPs(ctx, cfg, known, engine, logger)
	}

	if cfg.Web.Enable {
		server := web.NewServer(svc, logger)
		go func() {
			if err := server.ListenAndServe(ctx, cfg.Web.Listen); err != nil {
				logger.Printf("Status server failed: %v", err)
			}
		}()
	}

	logger.Printf("NJORD %s sending %s every %v", versionString(), cfg.Output.MessageType, cfg.Output.Interval)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start buoy: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Printf("Shutting down")
	case <-svc.Done():
	}
	return nil
}
