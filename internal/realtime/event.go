// Package realtime carries resume change notifications between editing
// sessions. Delivery is best effort: events may arrive late, twice, out of
// order, or not at all, and there is no replay.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrClosed is returned when publishing or subscribing on a closed channel.
var ErrClosed = errors.New("realtime channel closed")

// Event announces the full content of a resume at a point in time.
type Event struct {
	ResumeID        string         `json:"resumeId"`
	Content         map[string]any `json:"content"`
	SourceTimestamp time.Time      `json:"sourceTimestamp"`
	Origin          string         `json:"origin,omitempty"`
}

// Delivery is one item read from a subscription. Resync is set instead of
// Event when the transport reconnected and missed events may have been lost.
type Delivery struct {
	Event  *Event
	Resync bool
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Channel is a pub/sub transport keyed by resume.
type Channel interface {
	Publisher
	Subscribe(ctx context.Context, resumeID string) (Subscription, error)
}

// Subscription streams deliveries for one resume until closed.
type Subscription interface {
	Deliveries() <-chan Delivery
	Close() error
}

// ChannelName returns the pub/sub topic for a resume.
func ChannelName(resumeID string) string {
	return "resume-" + resumeID
}

// EncodeEvent returns the wire form of an event.
func EncodeEvent(ev Event) ([]byte, error) {
	if strings.TrimSpace(ev.ResumeID) == "" {
		return nil, errors.New("event resume id is required")
	}
	return json.Marshal(ev)
}

// DecodeEvent parses the wire form of an event.
func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode realtime event: %w", err)
	}
	if ev.ResumeID == "" {
		return Event{}, errors.New("decode realtime event: missing resumeId")
	}
	return ev, nil
}
