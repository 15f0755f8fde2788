package transport

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTOptions configures an MQTTSender.
type MQTTOptions struct {
	Broker   string // e.g. tcp://localhost:1883
	Topic    string
	ClientID string // random when empty
	Username string
	Password string
	QoS      byte
	Retained bool
	Timeout  time.Duration
}

// MQTTSender publishes each message to a topic.
type MQTTSender struct {
	client  mqtt.Client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
}

// NewMQTTSender connects to the broker.
func NewMQTTSender(opts MQTTOptions) (*MQTTSender, error) {
	if opts.ClientID == "" {
		opts.ClientID = "njord-" + uuid.NewString()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.Timeout)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}
	return newMQTTSender(client, opts), nil
}

func newMQTTSender(client mqtt.Client, opts MQTTOptions) *MQTTSender {
	return &MQTTSender{
		client:  client,
		topic:   opts.Topic,
		qos:     opts.QoS,
		retain:  opts.Retained,
		timeout: opts.Timeout,
	}
}

func (s *MQTTSender) Send(msg string) error {
	if !s.client.IsConnectionOpen() {
		return errors.New("mqtt: not connected")
	}
	token := s.client.Publish(s.topic, s.qos, s.retain, msg)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt publish to %s: timed out", s.topic)
	}
	return token.Error()
}

func (s *MQTTSender) Close() error {
	s.client.Disconnect(250)
	return nil
}
