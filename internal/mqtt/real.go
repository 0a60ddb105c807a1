package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/plant-nanny/internal/logger"
)

// RealSubscriber applies settings received from an actual MQTT broker.
type RealSubscriber struct {
	client paho.Client
	topic  string
	editor SelectionEditor
}

// NewRealSubscriber connects to broker and subscribes to topic. The
// subscription is renewed on every reconnect.
func NewRealSubscriber(broker, topic, clientID string, editor SelectionEditor) (*RealSubscriber, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if clientID == "" {
		clientID = DefaultClientID
	}
	s := &RealSubscriber{topic: topic, editor: editor}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "err", err)
		})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return s, nil
}

func (s *RealSubscriber) onConnect(c paho.Client) {
	// QoS 1; the broker replays a retained settings message on subscribe.
	token := c.Subscribe(s.topic, 1, s.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		logger.Error("mqtt subscribe timeout", "topic", s.topic)
		return
	}
	if err := token.Error(); err != nil {
		logger.Error("mqtt subscribe", "topic", s.topic, "err", err)
		return
	}
	logger.Info("mqtt subscribed", "topic", s.topic)
}

func (s *RealSubscriber) onMessage(_ paho.Client, msg paho.Message) {
	sel, err := HandlePayload(s.editor, msg.Payload())
	if err != nil {
		logger.Warn("mqtt settings rejected", "topic", msg.Topic(), "err", err)
		return
	}
	logger.Info("selection changed", "source", "mqtt",
		"delay", sel.Delay().String(), "target", sel.Target().String())
}

// IsConnected reports whether the client currently has a broker connection.
func (s *RealSubscriber) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// Close unsubscribes and disconnects from the broker.
func (s *RealSubscriber) Close() error {
	if s.client.IsConnectionOpen() {
		s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(1000) // 1 second timeout
	return nil
}
