package mqtt

import (
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Running implements sensor.Runtime: true once the runtime announced itself
// online on the status topic.
func (h *Host) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// OnStarted implements sensor.Runtime.
func (h *Host) OnStarted(fn func()) {
	h.mu.Lock()
	if !h.running {
		h.started = append(h.started, fn)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	fn()
}

// onStatus runs on the paho router and must not block. Discovery waits for
// broker acknowledgements, so it is repeated on its own goroutine.
func (h *Host) onStatus(_ paho.Client, msg paho.Message) {
	status := strings.ToLower(strings.TrimSpace(string(msg.Payload())))
	h.events.push(func() { h.handleStatus(status) })
}

func (h *Host) handleStatus(status string) {
	switch status {
	case PayloadOnline:
		h.markRunning("home automation runtime online")
		go h.reannounce()
	case PayloadOffline:
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		h.log.Warnf("home automation runtime offline")
	default:
		h.log.Debugf("ignoring status %q", status)
	}
}

// markRunning flips the runtime to started and runs pending callbacks once.
func (h *Host) markRunning(reason string) {
	h.mu.Lock()
	wasRunning := h.running
	h.running = true
	pending := h.started
	h.started = nil
	h.mu.Unlock()
	if !wasRunning {
		h.log.Infof("%s", reason)
	}
	for _, fn := range pending {
		fn()
	}
}

// assumeRunning covers a runtime that was already up before we connected:
// its birth message is not retained.
func (h *Host) assumeRunning() {
	if h.Running() {
		return
	}
	h.markRunning("no birth message received, assuming runtime is started")
}
