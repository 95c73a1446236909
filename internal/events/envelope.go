package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// Envelope is the durable wire shape of a domain event: identity for
// idempotence, address key for partitioning, kind for decoding.
type Envelope struct {
	ID      string                `json:"id"`
	Kind    domain.EventKind      `json:"kind"`
	Address domain.NetworkAddress `json:"net_address"`
	At      time.Time             `json:"at"`
	Payload json.RawMessage       `json:"payload"`
}

// Wrap assigns the event a fresh identity and serializes its payload.
func Wrap(ev domain.Event) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal event payload: %w", err)
	}
	return Envelope{
		ID:      uuid.NewString(),
		Kind:    ev.EventKind(),
		Address: ev.EventAddress(),
		At:      time.Now().UTC(),
		Payload: payload,
	}, nil
}

// Event decodes the payload back into its domain event.
func (e Envelope) Event() (domain.Event, error) {
	switch e.Kind {
	case domain.EventIdentityInserted:
		var ev domain.IdentityInserted
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case domain.EventFieldUpdated:
		var ev domain.FieldUpdated
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case domain.EventIdentityFullyVerified:
		var ev domain.IdentityFullyVerified
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case domain.EventRemarkFound:
		var ev domain.RemarkFound
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case domain.EventJudgementGiven:
		var ev domain.JudgementGiven
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, fmt.Errorf("unknown event kind %q", e.Kind)
}
