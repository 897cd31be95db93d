package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"firewatch-cloud/internal/ingest"
)

// DefaultTopic is the receiver uplink topic. Receivers publish one
// packet per message.
const DefaultTopic = "firewatch/uplink/#"

// Config holds MQTT broker settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Consumer subscribes to the receiver uplink topic and feeds packets
// into the ingestion pipeline. Each message is processed independently;
// a bad packet never stops the stream.
type Consumer struct {
	client  paho.Client
	service *ingest.Service
	topic   string
	qos     byte
	logger  *log.Logger
}

// NewConsumer connects to the broker and constructs a consumer.
func NewConsumer(cfg Config, service *ingest.Service, logger *log.Logger) (*Consumer, error) {
	if service == nil {
		return nil, errors.New("mqtt consumer: nil ingest service")
	}
	if cfg.Broker == "" {
		return nil, errors.New("mqtt consumer: empty broker")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "firewatch-ingest"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt consumer: connect: %w", token.Error())
	}

	return &Consumer{
		client:  client,
		service: service,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		logger:  logger,
	}, nil
}

// Start subscribes to the uplink topic.
func (c *Consumer) Start(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("mqtt consumer: not connected")
	}
	token := c.client.Subscribe(c.topic, c.qos, func(_ paho.Client, msg paho.Message) {
		c.handleMessage(ctx, msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt consumer: subscribe %s: %w", c.topic, token.Error())
	}
	c.logger.Printf("mqtt: subscribed to %s", c.topic)
	return nil
}

// Close disconnects from the broker.
func (c *Consumer) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Disconnect(250)
}

func (c *Consumer) handleMessage(ctx context.Context, topic string, payload []byte) {
	var packet uplinkPacket
	if err := json.Unmarshal(payload, &packet); err != nil {
		c.logger.Printf("mqtt: drop malformed payload on %s: %v", topic, err)
		return
	}

	if _, err := c.service.Ingest(ctx, packet.toRawEvent()); err != nil {
		// Per-event failure; the stream continues.
		c.logger.Printf("mqtt: ingest failed on %s: %v", topic, err)
	}
}

type uplinkPacket struct {
	ReceiverMAC        string `json:"receiverMac"`
	ReceiverStatusCode string `json:"receiverStatusCode"`
	RepeaterID         string `json:"repeaterId"`
	RepeaterStatusCode string `json:"repeaterStatusCode"`
	DetectorChamber    string `json:"detectorChamber"`
	DetectorTemp       string `json:"detectorTemp"`
	ReceivedData       string `json:"receivedData"`
	CommStatus         string `json:"commStatus"`
	BatteryStatus      string `json:"batteryStatus"`
	ChamberStatus      string `json:"chamberStatus"`
	TS                 int64  `json:"ts"`
}

func (p uplinkPacket) toRawEvent() ingest.RawEvent {
	event := ingest.RawEvent{
		ReceiverMAC:        p.ReceiverMAC,
		ReceiverStatusCode: p.ReceiverStatusCode,
		RepeaterID:         p.RepeaterID,
		RepeaterStatusCode: p.RepeaterStatusCode,
		DetectorChamber:    p.DetectorChamber,
		DetectorTemp:       p.DetectorTemp,
		ReceivedData:       p.ReceivedData,
		CommStatus:         p.CommStatus,
		BatteryStatus:      p.BatteryStatus,
		ChamberStatus:      p.ChamberStatus,
	}
	if p.TS > 0 {
		if p.TS > 1_000_000_000_000 {
			event.Timestamp = time.UnixMilli(p.TS).UTC()
		} else {
			event.Timestamp = time.Unix(p.TS, 0).UTC()
		}
	}
	return event
}
