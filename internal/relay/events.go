// This file contains the transport wire protocol: the JSON envelopes
// exchanged with the telephony media stream over the WebSocket, and the
// typed events the controller consumes after decoding.

package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EventType identifies one kind of transport event.
type EventType string

const (
	// EventStart opens the media stream and carries the stream identifier.
	EventStart EventType = "start"

	// EventMedia carries one base64-encoded μ-law audio frame.
	EventMedia EventType = "media"

	// EventMark acknowledges that a previously sent audio payload finished
	// playing on the caller's side.
	EventMark EventType = "mark"

	// EventStop ends the session.
	EventStop EventType = "stop"
)

// Envelope is the JSON shape of every inbound and outbound transport
// message. Exactly one of the payload pointers is set, matching Event.
type Envelope struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload accompanies the start event.
type StartPayload struct {
	StreamSid  string `json:"streamSid"`
	CallSid    string `json:"callSid,omitempty"`
	AccountSid string `json:"accountSid,omitempty"`
}

// MediaPayload accompanies media events in both directions. Payload is
// base64-encoded μ-law.
type MediaPayload struct {
	Payload string `json:"payload"`
}

// MarkPayload accompanies mark events in both directions.
type MarkPayload struct {
	Name string `json:"name"`
}

// Event is one decoded transport event, ready for the controller. Frame is
// set only for EventMedia and holds raw μ-law bytes.
type Event struct {
	Type      EventType
	StreamSid string
	CallSid   string
	Frame     []byte
	MarkName  string
}

// ParseEvent decodes one raw transport message into an Event. Unknown event
// names and undecodable media payloads are errors; the caller logs and skips
// the message rather than tearing down the call.
func ParseEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("relay: decode envelope: %w", err)
	}

	switch EventType(env.Event) {
	case EventStart:
		if env.Start == nil {
			return Event{}, fmt.Errorf("relay: start event without start payload")
		}
		return Event{
			Type:      EventStart,
			StreamSid: env.Start.StreamSid,
			CallSid:   env.Start.CallSid,
		}, nil

	case EventMedia:
		if env.Media == nil {
			return Event{}, fmt.Errorf("relay: media event without media payload")
		}
		frame, err := base64.StdEncoding.DecodeString(env.Media.Payload)
		if err != nil {
			return Event{}, fmt.Errorf("relay: decode media payload: %w", err)
		}
		return Event{Type: EventMedia, StreamSid: env.StreamSid, Frame: frame}, nil

	case EventMark:
		if env.Mark == nil {
			return Event{}, fmt.Errorf("relay: mark event without mark payload")
		}
		return Event{Type: EventMark, StreamSid: env.StreamSid, MarkName: env.Mark.Name}, nil

	case EventStop:
		return Event{Type: EventStop, StreamSid: env.StreamSid}, nil

	default:
		return Event{}, fmt.Errorf("relay: unknown event %q", env.Event)
	}
}

// EncodeMediaMessage builds the outbound media envelope for one μ-law
// payload.
func EncodeMediaMessage(streamSid string, frame []byte) ([]byte, error) {
	return json.Marshal(Envelope{
		Event:     string(EventMedia),
		StreamSid: streamSid,
		Media:     &MediaPayload{Payload: base64.StdEncoding.EncodeToString(frame)},
	})
}

// EncodeMarkMessage builds the outbound mark envelope requesting an
// end-of-playback acknowledgment.
func EncodeMarkMessage(streamSid, name string) ([]byte, error) {
	return json.Marshal(Envelope{
		Event:     string(EventMark),
		StreamSid: streamSid,
		Mark:      &MarkPayload{Name: name},
	})
}
