package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// rawPayload keeps the broker's JSON bytes intact when the queue publisher
// re-marshals them.
func rawPayload(b []byte) json.RawMessage {
	return json.RawMessage(b)
}

// Publisher is where bridged messages land.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Config holds the broker connection settings.
type Config struct {
	Broker   string
	Port     int
	ClientID string
	Username string
	Password string
	// Topic is the broker topic the detection workers publish to.
	Topic string
	// QueueTopic is the durable queue topic messages are republished on.
	QueueTopic string
}

// Bridge subscribes to the broker's detection topic and republishes every
// message into the durable queue. The broker gives at-least-once up to the
// bridge; the queue makes it at-least-once through to the pipeline, surviving
// worker restarts.
type Bridge struct {
	cfg       Config
	publisher Publisher
	logger    *slog.Logger
	client    mqtt.Client
}

func NewBridge(cfg Config, publisher Publisher, logger *slog.Logger) *Bridge {
	return &Bridge{
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
	}
}

// Start connects to the broker and subscribes. Returns after the initial
// connection; reconnects and resubscription happen automatically.
func (b *Bridge) Start(ctx context.Context) error {
	brokerURL := fmt.Sprintf("tcp://%s:%d", b.cfg.Broker, b.cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warn("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		b.logger.Info("mqtt connected", "broker", brokerURL)
		b.subscribe(ctx, client)
	})

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect mqtt broker: %w", token.Error())
	}

	return nil
}

// subscribe runs on every (re)connect; the paho client does not restore
// subscriptions across reconnects on its own.
func (b *Bridge) subscribe(ctx context.Context, client mqtt.Client) {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if err := b.publisher.Publish(ctx, b.cfg.QueueTopic, rawPayload(msg.Payload())); err != nil {
			// Not acked towards the broker either way; paho QoS 1 already
			// acked on receipt, so a failed republish here is lost unless
			// the detector resends. Log loudly.
			b.logger.Error("bridge publish failed",
				"mqtt_topic", msg.Topic(),
				"error", err,
			)
			return
		}
		b.logger.Debug("message bridged", "mqtt_topic", msg.Topic())
	}

	if token := client.Subscribe(b.cfg.Topic, 1, handler); token.Wait() && token.Error() != nil {
		b.logger.Error("mqtt subscribe failed",
			"topic", b.cfg.Topic,
			"error", token.Error(),
		)
		return
	}
	b.logger.Info("mqtt subscribed", "topic", b.cfg.Topic)
}

// Stop disconnects from the broker, waiting briefly for in-flight handlers.
func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
		b.logger.Info("mqtt disconnected")
	}
}
