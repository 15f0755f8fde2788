package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/porcej/njord/arbiter"
	"github.com/porcej/njord/gps"
	"github.com/porcej/njord/telemetry"
)

type Config struct {
	AOS         AOSConfig         `yaml:"aos"`
	KnownAPs    KnownAPsConfig    `yaml:"known_aps"`
	Arbitration ArbitrationConfig `yaml:"arbitration"`
	Output      OutputConfig      `yaml:"output"`
	UDP         UDPConfig         `yaml:"udp"`
	TCP         TCPConfig         `yaml:"tcp"`
	Stdout      StdoutConfig      `yaml:"stdout"`
	Serial      SerialConfig      `yaml:"serial"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Receiver    ReceiverConfig    `yaml:"receiver"`
	Replay      ReplayConfig      `yaml:"replay"`
	Web         WebConfig         `yaml:"web"`
	GPX         GPXConfig         `yaml:"gpx"`
}

type AOSConfig struct {
	URL       string        `yaml:"url"` // http(s) URL or a recorded response file
	Gateway   bool          `yaml:"gateway"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	VerifyTLS bool          `yaml:"verify_tls"` // routers ship self-signed certificates
	Timeout   time.Duration `yaml:"timeout"`
	SpeedUnit string        `yaml:"speed_unit"`
}

type KnownAPsConfig struct {
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	Refresh time.Duration `yaml:"refresh"` // 0 checks only at startup
}

type ArbitrationConfig struct {
	ExcellentHDOP   float64       `yaml:"excellent_hdop"`
	PoorHDOP        float64       `yaml:"poor_hdop"`
	MaxScanAttempts int           `yaml:"max_scan_attempts"`
	ScanDelay       time.Duration `yaml:"scan_delay"`
	CacheMatches    bool          `yaml:"cache_matches"`
	Bands           []string      `yaml:"bands"`
}

type OutputConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MessageType string        `yaml:"message_type"`
	Talker      string        `yaml:"talker"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type TCPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type StdoutConfig struct {
	Enable bool `yaml:"enable"`
}

type SerialConfig struct {
	Enable   bool   `yaml:"enable"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

type ReceiverConfig struct {
	Enable   bool   `yaml:"enable"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	TAIPID   string `yaml:"taip_id"`
}

type ReplayConfig struct {
	Enable     bool    `yaml:"enable"`
	Path       string  `yaml:"path"`
	Loop       bool    `yaml:"loop"`
	HDOP       float64 `yaml:"hdop"`
	Satellites int     `yaml:"satellites"`
	TAIPID     string  `yaml:"taip_id"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type GPXConfig struct {
	Enable    bool   `yaml:"enable"`
	Path      string `yaml:"path"`
	TrackName string `yaml:"track_name"`
}

// Default returns the configuration used when no file is given: TAIP-PV
// broadcast on UDP port 21000 once a second.
func Default() Config {
	cfg := Config{
		UDP: UDPConfig{Enable: true},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML configuration file, fills defaults and validates it.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse is Load for configuration already in memory.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AOS.URL == "" {
		c.AOS.URL = "https://192.168.1.1"
	}
	if c.AOS.Timeout <= 0 {
		c.AOS.Timeout = 30 * time.Second
	}
	if c.AOS.SpeedUnit == "" {
		c.AOS.SpeedUnit = string(arbiter.SpeedKMH)
	}
	if c.KnownAPs.Path == "" {
		c.KnownAPs.Path = "data/config.json"
	}

	if c.Arbitration.MaxScanAttempts == 0 {
		c.Arbitration.MaxScanAttempts = 1
	}
	if len(c.Arbitration.Bands) == 0 {
		c.Arbitration.Bands = append([]string(nil), telemetry.Bands...)
	}

	if c.Output.Interval <= 0 {
		c.Output.Interval = 1 * time.Second
	}
	if c.Output.MessageType == "" {
		c.Output.MessageType = string(gps.MessageTAIPPV)
	}
	if c.Output.Talker == "" {
		c.Output.Talker = string(gps.TalkerGPS)
	}

	if c.UDP.Dest == "" {
		c.UDP.Dest = "255.255.255.255:21000"
	}
	if c.TCP.Dest == "" {
		c.TCP.Dest = "127.0.0.1:9011"
	}
	if c.Serial.BaudRate <= 0 {
		c.Serial.BaudRate = 4800
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "njord/position"
	}
	if c.Receiver.BaudRate <= 0 {
		c.Receiver.BaudRate = 9600
	}
	if c.Web.Listen == "" {
		c.Web.Listen = ":8080"
	}
	if c.GPX.Path == "" {
		c.GPX.Path = "njord_track.gpx"
	}
	if c.GPX.TrackName == "" {
		c.GPX.TrackName = "NJORD Track"
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if _, err := c.ArbiterConfig(); err != nil {
		return fmt.Errorf("arbitration: %w", err)
	}

	switch gps.MessageType(c.Output.MessageType) {
	case gps.MessageTAIPPV, gps.MessageNMEA, gps.MessageNMEARMC:
	default:
		return fmt.Errorf("output.message_type must be one of %s, %s, %s", gps.MessageTAIPPV, gps.MessageNMEA, gps.MessageNMEARMC)
	}
	if !gps.Talker(c.Output.Talker).Valid() {
		return fmt.Errorf("output.talker %q is not an NMEA talker", c.Output.Talker)
	}

	if c.Serial.Enable && c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required when serial.enable is true")
	}
	if c.MQTT.Enable && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}

	if c.Receiver.Enable && c.Receiver.Port == "" {
		return fmt.Errorf("receiver.port is required when receiver.enable is true")
	}
	if c.Replay.Enable && c.Replay.Path == "" {
		return fmt.Errorf("replay.path is required when replay.enable is true")
	}
	if c.Receiver.Enable && c.Replay.Enable {
		return fmt.Errorf("receiver and replay cannot both be enabled")
	}
	return nil
}

// ArbiterConfig converts the arbitration section for the engine.
func (c *Config) ArbiterConfig() (arbiter.Config, error) {
	cfg := arbiter.Config{
		ExcellentHDOP:   c.Arbitration.ExcellentHDOP,
		PoorHDOP:        c.Arbitration.PoorHDOP,
		MaxScanAttempts: c.Arbitration.MaxScanAttempts,
		ScanDelay:       c.Arbitration.ScanDelay,
		CacheMatches:    c.Arbitration.CacheMatches,
		Bands:           c.Arbitration.Bands,
		SpeedUnit:       arbiter.SpeedUnit(c.AOS.SpeedUnit),
	}
	if err := cfg.Validate(); err != nil {
		return arbiter.Config{}, err
	}
	return cfg, nil
}
