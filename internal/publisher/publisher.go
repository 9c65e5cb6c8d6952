// Package publisher republishes decoded apcupsd status over MQTT: one topic
// per status field plus a combined JSON state topic per host.
package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/apcupsd-exporter/internal/apcupsd"
)

// Message is a single MQTT publish request.
type Message struct {
	Topic    string
	Payload  string
	Retained bool
}

// Publisher is the minimal interface the rest of the codebase uses to send
// MQTT messages. The real MQTT client and FakePublisher both implement it.
type Publisher interface {
	Publish(msg Message) error
	Close() error
}

// PublishConfig groups the MQTT routing parameters.
type PublishConfig struct {
	Prefix   string
	Retained bool
}

// StateMessage is the JSON payload for a host's combined state topic.
type StateMessage struct {
	Timestamp string            `json:"timestamp"`
	Host      string            `json:"host"`
	Fields    map[string]string `json:"fields"`
}

// OnlineState is the LWT / online-announcement payload.
type OnlineState struct {
	Online    bool   `json:"online"`
	Timestamp string `json:"timestamp"`
}

// PublishResult publishes the outcome of one poll. A failed poll only marks
// the host unavailable; a successful one publishes every status field as an
// individual topic followed by the combined JSON state topic. It returns
// the first publish error encountered.
func PublishResult(r apcupsd.Result, cfg PublishConfig, pub Publisher) error {
	host := r.Target.String()
	avail := Message{Topic: HostTopic(cfg.Prefix, host, "available"), Retained: cfg.Retained}

	if r.Err != nil {
		avail.Payload = "offline"
		return pub.Publish(avail)
	}

	for _, f := range r.Record.Fields() {
		msg := Message{
			Topic:    HostTopic(cfg.Prefix, host, f.Key),
			Payload:  f.Value,
			Retained: cfg.Retained,
		}
		if err := pub.Publish(msg); err != nil {
			return err
		}
	}

	if err := publishState(host, r.Record, cfg, pub); err != nil {
		return err
	}
	avail.Payload = "online"
	return pub.Publish(avail)
}

// HostTopic returns the topic for key under host, e.g.
// "apcupsd/ups1_3551/linev". Characters MQTT treats specially are replaced.
func HostTopic(prefix, host, key string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, topicSegment(host), topicSegment(strings.ToLower(key)))
}

// StatusTopic returns the exporter's own online/offline topic.
func StatusTopic(prefix string) string {
	return prefix + "/status"
}

// FormatOnline returns the JSON payload for the online announcement.
func FormatOnline() string {
	return formatOnlineState(true)
}

// FormatOffline returns the JSON payload for the offline announcement.
func FormatOffline() string {
	return formatOnlineState(false)
}

func formatOnlineState(online bool) string {
	payload, _ := json.Marshal(OnlineState{
		Online:    online,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(payload)
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", ":", "_", " ", "_", "[", "", "]", "")

func topicSegment(s string) string {
	return topicReplacer.Replace(s)
}

// publishState marshals and publishes the combined JSON state message.
func publishState(host string, rec *apcupsd.Record, cfg PublishConfig, pub Publisher) error {
	state := StateMessage{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Host:      host,
		Fields:    rec.Map(),
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	return pub.Publish(Message{
		Topic:    HostTopic(cfg.Prefix, host, "state"),
		Payload:  string(payload),
		Retained: cfg.Retained,
	})
}
