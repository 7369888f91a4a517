package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/predictive-sensor/core/model"
)

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// discoveryConfig is the sensor discovery payload of the home automation
// runtime.
type discoveryConfig struct {
	Name                      string          `json:"name"`
	UniqueID                  string          `json:"unique_id"`
	ObjectID                  string          `json:"object_id"`
	StateTopic                string          `json:"state_topic"`
	JSONAttributesTopic       string          `json:"json_attributes_topic"`
	AvailabilityTopic         string          `json:"availability_topic,omitempty"`
	UnitOfMeasurement         string          `json:"unit_of_measurement,omitempty"`
	DeviceClass               string          `json:"device_class,omitempty"`
	StateClass                string          `json:"state_class"`
	SuggestedDisplayPrecision int             `json:"suggested_display_precision"`
	Device                    discoveryDevice `json:"device"`
}

type stateAttributes struct {
	SourceEntityID string    `json:"source_entity_id"`
	LastUpdated    time.Time `json:"last_updated"`
	Value          float64   `json:"value"`
}

func (h *Host) entityTopic(info model.EntityInfo, leaf string) string {
	return strings.Join([]string{h.cfg.DiscoveryPrefix, "sensor", info.UniqueID, leaf}, "/")
}

// DiscoveryTopic returns the discovery config topic of info.
func (h *Host) DiscoveryTopic(info model.EntityInfo) string { return h.entityTopic(info, "config") }

// PredictionTopic returns the topic carrying the value of info.
func (h *Host) PredictionTopic(info model.EntityInfo) string { return h.entityTopic(info, "state") }

func deviceClass(unit string) string {
	switch unit {
	case "°C", "°F", "K":
		return "temperature"
	case "%":
		return "humidity"
	case "hPa", "mbar", "Pa":
		return "pressure"
	}
	return ""
}

func (h *Host) discoveryPayload(info model.EntityInfo) ([]byte, error) {
	return json.Marshal(discoveryConfig{
		Name:                      info.Name,
		UniqueID:                  info.UniqueID,
		ObjectID:                  info.UniqueID,
		StateTopic:                h.PredictionTopic(info),
		JSONAttributesTopic:       h.entityTopic(info, "attributes"),
		AvailabilityTopic:         h.cfg.AvailabilityTopic,
		UnitOfMeasurement:         info.Unit,
		DeviceClass:               deviceClass(info.Unit),
		StateClass:                "measurement",
		SuggestedDisplayPrecision: info.Precision,
		Device: discoveryDevice{
			Identifiers:  []string{info.UniqueID},
			Name:         info.Name,
			Manufacturer: "predictive-sensor",
			Model:        "prediction of " + info.SourceEntityID,
		},
	})
}

// announce publishes the discovery config of info the first time it is seen.
func (h *Host) announce(ctx context.Context, info model.EntityInfo) error {
	h.mu.Lock()
	prev, seen := h.announced[info.UniqueID]
	h.mu.Unlock()
	if seen && prev == info {
		return nil
	}
	payload, err := h.discoveryPayload(info)
	if err != nil {
		return fmt.Errorf("discovery payload: %w", err)
	}
	if err := h.publish(ctx, h.DiscoveryTopic(info), true, payload); err != nil {
		return fmt.Errorf("discovery %s: %w", info.UniqueID, err)
	}
	h.mu.Lock()
	h.announced[info.UniqueID] = info
	h.mu.Unlock()
	h.log.Infof("announced %s on %s", info.UniqueID, h.DiscoveryTopic(info))
	return nil
}

// reannounce repeats discovery after the runtime restarted.
func (h *Host) reannounce() {
	h.mu.Lock()
	infos := make([]model.EntityInfo, 0, len(h.announced))
	for _, info := range h.announced {
		infos = append(infos, info)
	}
	h.announced = make(map[string]model.EntityInfo)
	h.mu.Unlock()
	for _, info := range infos {
		if err := h.announce(context.Background(), info); err != nil {
			h.log.Errorf("reannounce: %v", err)
		}
	}
}

// PublishState implements sensor.Publisher. The value is rounded to the
// display precision of the entity.
func (h *Host) PublishState(ctx context.Context, info model.EntityInfo, st model.PredictionState) error {
	if err := h.announce(ctx, info); err != nil {
		return err
	}
	attrs, err := json.Marshal(stateAttributes{
		SourceEntityID: info.SourceEntityID,
		LastUpdated:    st.LastUpdated,
		Value:          st.Value,
	})
	if err != nil {
		return fmt.Errorf("attributes payload: %w", err)
	}
	if err := h.publish(ctx, h.PredictionTopic(info), h.cfg.Retain, []byte(info.Format(st.Value))); err != nil {
		return err
	}
	return h.publish(ctx, h.entityTopic(info, "attributes"), h.cfg.Retain, attrs)
}
