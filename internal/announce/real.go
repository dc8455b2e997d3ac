package announce

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
	connectWait    = 10 * time.Second
	publishTimeout = 5 * time.Second
	pendingCap     = 64
)

// RealPublisher publishes to an actual MQTT broker. Events published while
// the broker is unreachable are buffered and replayed on reconnect.
type RealPublisher struct {
	client      paho.Client
	eventsTopic string
	systemTopic string

	mu      sync.Mutex
	pending *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker, announcing
// under the device hostname. The connection keeps retrying in the
// background, so an unreachable broker at boot only delays delivery.
func NewRealPublisher(broker, host string) (*RealPublisher, error) {
	p := &RealPublisher{
		eventsTopic: EventsTopic(host),
		systemTopic: SystemTopic(host),
		pending:     newRingBuffer(pendingCap),
	}

	// Last will so watchers learn about power loss.
	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("onair-sign-" + host).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.systemTopic, will, 1, false).
		SetOnConnectHandler(p.replayPending)

	client := paho.NewClient(opts)
	p.client = client

	token := client.Connect()
	if token.WaitTimeout(connectWait) {
		if err := token.Error(); err != nil {
			client.Disconnect(0)
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
	} else {
		log.Warn().Str("broker", broker).Msg("Broker not reachable yet, buffering announcements")
	}

	return p, nil
}

// PublishSign sends a sign state change to the broker.
func (p *RealPublisher) PublishSign(event SignEvent) error {
	payload, err := FormatSignPayload(event)
	if err != nil {
		return fmt.Errorf("format sign payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(p.eventsTopic, 0, false, payload)
}

// PublishSystem sends a lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - lifecycle events should not be lost
	return p.publish(p.systemTopic, 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.client.IsConnected() {
		p.pending.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		buffered := p.pending.size()
		p.mu.Unlock()
		log.Debug().Str("topic", topic).Int("buffered", buffered).Msg("Broker offline, announcement buffered")
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// replayPending flushes announcements buffered while disconnected.
func (p *RealPublisher) replayPending(client paho.Client) {
	p.mu.Lock()
	msgs := p.pending.drain()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	log.Info().Int("count", len(msgs)).Msg("Replaying buffered announcements")
	for _, m := range msgs {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// IsConnected reports whether the broker connection is active.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
