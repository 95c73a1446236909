package domain

import "strings"

// ExpectedMessage is a challenge token the claimant must prove control by
// reproducing through the claimed channel.
type ExpectedMessage string

// ProvidedMessage is an inbound proof as delivered by a transport, split into
// the parts the transport delivered it in.
type ProvidedMessage struct {
	Parts []ProvidedMessagePart `json:"parts"`
}

type ProvidedMessagePart string

func NewProvidedMessage(parts ...string) ProvidedMessage {
	msg := ProvidedMessage{Parts: make([]ProvidedMessagePart, 0, len(parts))}
	for _, p := range parts {
		msg.Parts = append(msg.Parts, ProvidedMessagePart(p))
	}
	return msg
}

// Contains reports whether the expected token appears inside any single part
// of the provided message, and returns the part that matched. Matching against
// individual parts, never their concatenation, keeps a token fragment spanning
// a part boundary from passing.
func (e ExpectedMessage) Contains(message ProvidedMessage) (ProvidedMessagePart, bool) {
	if e == "" {
		return "", false
	}
	for _, part := range message.Parts {
		if strings.Contains(string(part), string(e)) {
			return part, true
		}
	}
	return "", false
}
