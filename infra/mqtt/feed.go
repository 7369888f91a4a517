package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/predictive-sensor/core/model"
)

// StateTopic returns the statestream topic of entityID,
// "<prefix>/<domain>/<object_id>/state".
func StateTopic(prefix, entityID string) (string, error) {
	domain, object, ok := strings.Cut(entityID, ".")
	if !ok || domain == "" || object == "" || strings.ContainsAny(entityID, "/#+") {
		return "", fmt.Errorf("invalid entity id %q", entityID)
	}
	return strings.Join([]string{prefix, domain, object, "state"}, "/"), nil
}

// Subscribe implements sensor.StateFeed.
func (h *Host) Subscribe(entityID string, handler func(model.StateChange)) (func(), error) {
	topic, err := StateTopic(h.cfg.StateTopicPrefix, entityID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	sub, exists := h.subs[topic]
	if !exists {
		sub = &subscription{entityID: entityID, handlers: make(map[uint64]func(model.StateChange))}
		h.subs[topic] = sub
	}
	sub.handlers[id] = handler
	cli := h.cli
	h.mu.Unlock()

	if !exists && cli != nil {
		token := cli.Subscribe(topic, h.cfg.QoS, h.onState)
		if !token.WaitTimeout(h.cfg.ConnectTimeout) || token.Error() != nil {
			h.unsubscribe(topic, id)
			if token.Error() != nil {
				return nil, fmt.Errorf("subscribe %s: %w", topic, token.Error())
			}
			return nil, fmt.Errorf("subscribe %s: timeout", topic)
		}
		h.log.Infof("following %s on %s", entityID, topic)
	}
	return func() { h.unsubscribe(topic, id) }, nil
}

func (h *Host) unsubscribe(topic string, id uint64) {
	h.mu.Lock()
	sub, ok := h.subs[topic]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(sub.handlers, id)
	if len(sub.handlers) > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.subs, topic)
	cli := h.cli
	h.mu.Unlock()
	if cli != nil && cli.IsConnected() {
		if token := cli.Unsubscribe(topic); token.Wait() && token.Error() != nil {
			h.log.Warnf("unsubscribe %s: %v", topic, token.Error())
		}
	}
}

// CurrentState implements sensor.StateFeed with the last received state.
func (h *Host) CurrentState(entityID string) (model.State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.current[entityID]
	return st, ok
}

// decodeState accepts a bare state or a JSON object carrying "state" and
// "last_changed".
func decodeState(entityID string, payload []byte, received time.Time) model.State {
	st := model.State{EntityID: entityID, Raw: strings.TrimSpace(string(payload)), LastChanged: received}
	if !strings.HasPrefix(st.Raw, "{") {
		return st
	}
	var obj struct {
		State       *string   `json:"state"`
		LastChanged time.Time `json:"last_changed"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil || obj.State == nil {
		return st
	}
	st.Raw = *obj.State
	if !obj.LastChanged.IsZero() {
		st.LastChanged = obj.LastChanged
	}
	return st
}

func (h *Host) onState(_ paho.Client, msg paho.Message) {
	h.mu.Lock()
	sub, ok := h.subs[msg.Topic()]
	if !ok {
		h.mu.Unlock()
		return
	}
	st := decodeState(sub.entityID, msg.Payload(), h.now())
	var old *model.State
	if prev, ok := h.current[sub.entityID]; ok {
		old = &prev
	}
	h.current[sub.entityID] = st
	handlers := make([]func(model.StateChange), 0, len(sub.handlers))
	for _, fn := range sub.handlers {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()

	ch := model.StateChange{EntityID: sub.entityID, Old: old, New: &st}
	h.events.push(func() {
		for _, fn := range handlers {
			fn(ch)
		}
	})
}
