package relay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	frame := []byte{0x7F, 0x80, 0xFF, 0x00}
	tests := []struct {
		name    string
		raw     string
		want    Event
		wantErr bool
	}{
		{
			name: "start",
			raw:  `{"event":"start","start":{"streamSid":"MS1","callSid":"CA1"}}`,
			want: Event{Type: EventStart, StreamSid: "MS1", CallSid: "CA1"},
		},
		{
			name: "media",
			raw:  `{"event":"media","streamSid":"MS1","media":{"payload":"` + base64.StdEncoding.EncodeToString(frame) + `"}}`,
			want: Event{Type: EventMedia, StreamSid: "MS1", Frame: frame},
		},
		{
			name: "mark",
			raw:  `{"event":"mark","streamSid":"MS1","mark":{"name":"turn-3"}}`,
			want: Event{Type: EventMark, StreamSid: "MS1", MarkName: "turn-3"},
		},
		{
			name: "stop",
			raw:  `{"event":"stop","streamSid":"MS1"}`,
			want: Event{Type: EventStop, StreamSid: "MS1"},
		},
		{name: "unknown event", raw: `{"event":"dtmf"}`, wantErr: true},
		{name: "start without payload", raw: `{"event":"start"}`, wantErr: true},
		{name: "media without payload", raw: `{"event":"media"}`, wantErr: true},
		{name: "media with bad base64", raw: `{"event":"media","media":{"payload":"!!!"}}`, wantErr: true},
		{name: "mark without payload", raw: `{"event":"mark"}`, wantErr: true},
		{name: "not json", raw: `hello`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseEvent([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseEvent(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEvent(%q): %v", tt.raw, err)
			}
			if got.Type != tt.want.Type || got.StreamSid != tt.want.StreamSid ||
				got.CallSid != tt.want.CallSid || got.MarkName != tt.want.MarkName ||
				!bytes.Equal(got.Frame, tt.want.Frame) {
				t.Errorf("ParseEvent = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodeMediaMessage(t *testing.T) {
	t.Parallel()

	frame := []byte{1, 2, 3, 4}
	raw, err := EncodeMediaMessage("MS1", frame)
	if err != nil {
		t.Fatalf("EncodeMediaMessage: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != "media" || env.StreamSid != "MS1" || env.Media == nil {
		t.Fatalf("envelope = %+v", env)
	}
	decoded, err := base64.StdEncoding.DecodeString(env.Media.Payload)
	if err != nil || !bytes.Equal(decoded, frame) {
		t.Errorf("payload = %q, decode err %v", env.Media.Payload, err)
	}

	// Outbound media must round-trip through the inbound parser.
	ev, err := ParseEvent(raw)
	if err != nil || !bytes.Equal(ev.Frame, frame) {
		t.Errorf("round trip = %+v, %v", ev, err)
	}
}

func TestEncodeMarkMessage(t *testing.T) {
	t.Parallel()

	raw, err := EncodeMarkMessage("MS1", "turn-1")
	if err != nil {
		t.Fatalf("EncodeMarkMessage: %v", err)
	}
	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if ev.Type != EventMark || ev.StreamSid != "MS1" || ev.MarkName != "turn-1" {
		t.Errorf("round trip = %+v", ev)
	}
}
