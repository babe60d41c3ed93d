// This file contains the control markup returned to the telephony
// provider's inbound-call webhook. The document either connects the call to
// the relay's media stream or speaks a rejection and hangs up; no other verb
// is ever emitted.

package server

import (
	"encoding/xml"
	"fmt"
)

// Response is the root element of the control document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Say     *Say     `xml:"Say,omitempty"`
	Connect *Connect `xml:"Connect,omitempty"`
	Hangup  *Hangup  `xml:"Hangup,omitempty"`
}

// Say speaks a short message to the caller with the provider's built-in
// voice.
type Say struct {
	Text string `xml:",chardata"`
}

// Connect hands the call's audio to a bidirectional media stream.
type Connect struct {
	Stream Stream `xml:"Stream"`
}

// Stream names the WebSocket endpoint that will carry the call's media.
type Stream struct {
	URL string `xml:"url,attr"`
}

// Hangup ends the call.
type Hangup struct{}

// streamResponse builds the markup connecting the call to the media stream
// at wsURL.
func streamResponse(wsURL string) ([]byte, error) {
	doc, err := xml.Marshal(Response{
		Connect: &Connect{Stream: Stream{URL: wsURL}},
	})
	if err != nil {
		return nil, fmt.Errorf("server: marshal stream response: %w", err)
	}
	return append([]byte(xml.Header), doc...), nil
}

// rejectResponse builds the markup that speaks message and hangs up.
func rejectResponse(message string) ([]byte, error) {
	doc, err := xml.Marshal(Response{
		Say:    &Say{Text: message},
		Hangup: &Hangup{},
	})
	if err != nil {
		return nil, fmt.Errorf("server: marshal reject response: %w", err)
	}
	return append([]byte(xml.Header), doc...), nil
}
