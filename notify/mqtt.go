package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// MqttPublisher publishes events as JSON to <prefix>/<plant id>/<kind>.
type MqttPublisher struct {
	logger *slog.Logger
	client mqtt.Client
	prefix string
}

func NewMqttPublisher(broker string, port int16, username, password, prefix string) *MqttPublisher {
	logger := slog.Default().With("module", "mqtt")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port))
	opts.SetClientID("pvsoiling")
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqtt.CRITICAL = newMqttLogger(logger, slog.LevelError)
	mqtt.ERROR = newMqttLogger(logger, slog.LevelError)
	mqtt.WARN = newMqttLogger(logger, slog.LevelWarn)

	return newMqttPublisher(logger, mqtt.NewClient(opts), prefix)
}

func newMqttPublisher(logger *slog.Logger, client mqtt.Client, prefix string) *MqttPublisher {
	return &MqttPublisher{
		logger: logger,
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

func (p *MqttPublisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (p *MqttPublisher) Disconnect() {
	p.logger.Info("disconnecting MQTT client")
	p.client.Disconnect(250)
}

func (p *MqttPublisher) Topic(e Event) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, e.PlantID, e.Kind)
}

func (p *MqttPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	topic := p.Topic(e)
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timeout when publishing to %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("error when publishing to %s: %w", topic, token.Error())
	}

	p.logger.Debug("published event", slog.String("topic", topic))
	return nil
}
