package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/porcej/njord/arbiter"
	"github.com/porcej/njord/config"
	"github.com/porcej/njord/telemetry"
	"github.com/porcej/njord/transport"
)

// loadKnownAPs reads the local access point file and replaces it with a
// newer remote copy when one is configured. Failures leave the buoy
// running on whatever it has.
func loadKnownAPs(ctx context.Context, cfg config.Config, logger *log.Logger) *config.KnownAPs {
	known, err := config.LoadKnownAPs(cfg.KnownAPs.Path)
	if err != nil {
		logger.Printf("Failed to load known access points: %v", err)
		known = &config.KnownAPs{}
	}
	if cfg.KnownAPs.URL == "" {
		return known
	}

	remote, replaced, err := config.DownloadIfNewer(ctx, configHTTPClient(cfg), cfg.KnownAPs.URL, cfg.KnownAPs.Path, known)
	if err != nil {
		logger.Printf("Failed to check for known access point updates: %v", err)
		return known
	}
	if replaced {
		logger.Printf("Known access points updated to %s", remote.UpdatedAt().Format(time.RFC3339))
	}
	return remote
}

func refreshKnownAPs(ctx context.Context, cfg config.Config, known *config.KnownAPs, engine *arbiter.Engine, logger *log.Logger) {
	ticker := time.NewTicker(cfg.KnownAPs.Refresh)
	defer ticker.Stop()
	client := configHTTPClient(cfg)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		remote, replaced, err := config.DownloadIfNewer(ctx, client, cfg.KnownAPs.URL, cfg.KnownAPs.Path, known)
		if err != nil {
			logger.Printf("Failed to check for known access point updates: %v", err)
			continue
		}
		if replaced {
			known = remote
			engine.SetTable(known.Table())
			logger.Printf("Known access points updated to %s (%d entries)", known.UpdatedAt().Format(time.RFC3339), engine.Table().Len())
		}
	}
}

func configHTTPClient(cfg config.Config) *http.Client {
	client := &http.Client{Timeout: cfg.AOS.Timeout}
	if !cfg.AOS.VerifyTLS {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		client.Transport = transport
	}
	return client
}

// buildFetcher selects the telemetry source: a GPX replay, a local
// receiver or the router's AOS API.
func buildFetcher(ctx context.Context, cfg config.Config, known *config.KnownAPs, logger *log.Logger) (telemetry.Fetcher, func(), error) {
	switch {
	case cfg.Replay.Enable:
		replay, err := telemetry.NewReplay(telemetry.ReplayConfig{
			File:       cfg.Replay.Path,
			Loop:       cfg.Replay.Loop,
			HDOP:       cfg.Replay.HDOP,
			Satellites: cfg.Replay.Satellites,
			TAIPID:     cfg.Replay.TAIPID,
		})
		if err != nil {
			return nil, nil, err
		}
		_, total := replay.Progress()
		logger.Printf("Starting GPX replay from: %s (%d points)", cfg.Replay.Path, total)
		return replay, func() {}, nil

	case cfg.Receiver.Enable:
		port, err := telemetry.OpenSerial(cfg.Receiver.Port, cfg.Receiver.BaudRate)
		if err != nil {
			return nil, nil, err
		}
		receiver := telemetry.NewReceiver(cfg.Receiver.TAIPID, logger)
		go receiver.Run(ctx, port)
		logger.Printf("Opened GNSS receiver: %s at %d baud", cfg.Receiver.Port, cfg.Receiver.BaudRate)
		return receiver, func() { port.Close() }, nil
	}

	client, err := newAOSClient(ctx, cfg, known, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {}, nil
}

func newAOSClient(ctx context.Context, cfg config.Config, known *config.KnownAPs, logger *log.Logger) (*telemetry.Client, error) {
	baseURL := cfg.AOS.URL
	if cfg.AOS.Gateway {
		gw, err := telemetry.DefaultGateway(ctx)
		if err != nil {
			return nil, err
		}
		baseURL = "https://" + gw.String()
	}

	username, password := cfg.AOS.Username, cfg.AOS.Password
	if username == "" {
		username = known.APIUser.Username
	}
	if password == "" {
		password = known.APIUser.Password
	}

	opts := []telemetry.ClientOption{
		telemetry.WithHTTPClient(&http.Client{Timeout: cfg.AOS.Timeout}),
		telemetry.WithCredentials(username, password),
		telemetry.WithUserAgent("njord/" + Version),
		telemetry.WithLogger(logger),
	}
	if !cfg.AOS.VerifyTLS {
		opts = append(opts, telemetry.WithInsecureTLS())
	}
	client, err := telemetry.NewClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}

	if client.FileProxy() {
		logger.Printf("Reading AOS responses from file: %s", baseURL)
		return client, nil
	}
	if err := client.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("AOS API %s: %w", baseURL, err)
	}
	logger.Printf("Authenticated with AOS API at %s", baseURL)
	return client, nil
}

func buildEngine(cfg config.Config, known *config.KnownAPs, logger *log.Logger) (*arbiter.Engine, error) {
	ac, err := cfg.ArbiterConfig()
	if err != nil {
		return nil, err
	}
	return arbiter.NewEngine(ac, known.Table(), arbiter.WithLogger(logger))
}

// buildSenders opens every enabled output. A failing output closes the
// ones opened before it.
func buildSenders(ctx context.Context, cfg config.Config, stdout io.Writer, logger *log.Logger) (transport.Multi, error) {
	var senders transport.Multi
	fail := func(err error) (transport.Multi, error) {
		senders.Close()
		return nil, err
	}

	if cfg.UDP.Enable {
		s, err := transport.NewUDPSender(ctx, cfg.UDP.Dest)
		if err != nil {
			return fail(err)
		}
		logger.Printf("Broadcasting on UDP %s", cfg.UDP.Dest)
		senders = append(senders, s)
	}
	if cfg.TCP.Enable {
		s, err := transport.NewTCPSender(ctx, cfg.TCP.Dest, logger)
		if err != nil {
			return fail(err)
		}
		logger.Printf("Sending to TCP %s", cfg.TCP.Dest)
		senders = append(senders, s)
	}
	if cfg.Serial.Enable {
		s, err := transport.NewSerialSender(cfg.Serial.Port, cfg.Serial.BaudRate)
		if err != nil {
			return fail(err)
		}
		logger.Printf("Opened serial port: %s at %d baud", cfg.Serial.Port, cfg.Serial.BaudRate)
		senders = append(senders, s)
	}
	if cfg.MQTT.Enable {
		s, err := transport.NewMQTTSender(transport.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      cfg.MQTT.QoS,
		})
		if err != nil {
			return fail(err)
		}
		logger.Printf("Publishing to MQTT %s topic %s", cfg.MQTT.Broker, cfg.MQTT.Topic)
		senders = append(senders, s)
	}
	if cfg.Stdout.Enable {
		senders = append(senders, transport.NewWriterSender(stdout))
	}

	if len(senders) == 0 {
		logger.Printf("No outputs enabled, positions are not sent anywhere")
	}
	return senders, nil
}
