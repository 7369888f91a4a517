package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/predictive-sensor/core/model"
	"github.com/kilianp07/predictive-sensor/infra/logger"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt: not connected")

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

type subscription struct {
	entityID string
	handlers map[uint64]func(model.StateChange)
}

// Host bridges prediction sensors to a broker. It follows upstream entities
// through the statestream export, tracks the runtime through its birth
// message and publishes predictions with discovery metadata.
type Host struct {
	cfg     Config
	cli     pahoClient
	log     logger.Logger
	now     func() time.Time
	backoff time.Duration
	events  *dispatcher

	mu         sync.Mutex
	subs       map[string]*subscription // by state topic
	current    map[string]model.State
	nextID     uint64
	running    bool
	started    []func()
	announced  map[string]model.EntityInfo
	birthTimer *time.Timer
}

// NewHost connects to the broker and subscribes to the runtime status topic.
func NewHost(cfg Config, log logger.Logger) (*Host, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt_host")
	}
	h := &Host{
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		backoff:   time.Duration(cfg.BackoffMS) * time.Millisecond,
		events:    newDispatcher(),
		subs:      make(map[string]*subscription),
		current:   make(map[string]model.State),
		announced: make(map[string]model.EntityInfo),
		running:   cfg.SkipBirth,
	}
	opts.OnConnect = h.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); !token.WaitTimeout(cfg.ConnectTimeout) {
		h.events.close()
		return nil, fmt.Errorf("connect %s: timeout after %s", cfg.Broker, cfg.ConnectTimeout)
	} else if token.Error() != nil {
		h.events.close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	h.mu.Lock()
	h.cli = c
	if !cfg.SkipBirth && cfg.BirthTimeout > 0 {
		h.birthTimer = time.AfterFunc(cfg.BirthTimeout, h.assumeRunning)
	}
	h.mu.Unlock()
	return h, nil
}

// onConnect restores availability and every subscription. Sessions are clean
// so the broker forgets them on reconnect.
func (h *Host) onConnect(c paho.Client) {
	h.log.Infof("MQTT connected to %s", h.cfg.Broker)
	if h.cfg.AvailabilityTopic != "" {
		c.Publish(h.cfg.AvailabilityTopic, h.cfg.QoS, true, PayloadOnline)
	}
	if !h.cfg.SkipBirth {
		if token := c.Subscribe(h.cfg.StatusTopic, h.cfg.QoS, h.onStatus); token.Wait() && token.Error() != nil {
			h.log.Errorf("subscribe %s: %v", h.cfg.StatusTopic, token.Error())
		}
	}
	h.mu.Lock()
	topics := make([]string, 0, len(h.subs))
	for topic := range h.subs {
		topics = append(topics, topic)
	}
	h.mu.Unlock()
	for _, topic := range topics {
		if token := c.Subscribe(topic, h.cfg.QoS, h.onState); token.Wait() && token.Error() != nil {
			h.log.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

func (h *Host) client() pahoClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cli
}

// publish sends payload, retrying with exponential backoff.
func (h *Host) publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	cli := h.client()
	if cli == nil || !cli.IsConnected() {
		return ErrNotConnected
	}
	var publishErr error
	for attempt := 0; attempt <= *h.cfg.MaxRetries; attempt++ {
		token := cli.Publish(topic, h.cfg.QoS, retained, payload)
		if !token.WaitTimeout(h.cfg.ConnectTimeout) {
			publishErr = fmt.Errorf("publish %s: timeout", topic)
		} else {
			publishErr = token.Error()
		}
		if publishErr == nil {
			return nil
		}
		h.log.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt == *h.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.backoff * time.Duration(1<<attempt)):
		}
	}
	return publishErr
}

// Close marks the predictions unavailable and disconnects.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.birthTimer != nil {
		h.birthTimer.Stop()
	}
	h.mu.Unlock()
	h.events.close()
	cli := h.client()
	if cli == nil || !cli.IsConnected() {
		return nil
	}
	if h.cfg.AvailabilityTopic != "" {
		token := cli.Publish(h.cfg.AvailabilityTopic, h.cfg.QoS, true, PayloadOffline)
		token.WaitTimeout(time.Second)
	}
	cli.Disconnect(250)
	return nil
}
