package storage

import (
	"encoding/json"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// The public JSON shape of a BackAndForth challenge redacts the reply token.
// Persistence needs it back after a restart, so the store uses its own record
// shape that carries the token explicitly.
type backAndForthRecord struct {
	domain.BackAndForthChallenge
	ExpectedMessageBack domain.ExpectedMessage `json:"expected_message_back"`
}

func encodeChallenge(c domain.ChallengeStatus) ([]byte, error) {
	if c.Kind != domain.KindBackAndForth {
		return json.Marshal(c)
	}
	return json.Marshal(struct {
		Type  domain.ChallengeKind `json:"type"`
		State backAndForthRecord   `json:"state"`
	}{
		Type: domain.KindBackAndForth,
		State: backAndForthRecord{
			BackAndForthChallenge: *c.BackAndForth,
			ExpectedMessageBack:   c.BackAndForth.ExpectedMessageBack,
		},
	})
}

func decodeChallenge(raw []byte) (domain.ChallengeStatus, error) {
	var c domain.ChallengeStatus
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.ChallengeStatus{}, err
	}
	if c.Kind == domain.KindBackAndForth {
		var env struct {
			State struct {
				ExpectedMessageBack domain.ExpectedMessage `json:"expected_message_back"`
			} `json:"state"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return domain.ChallengeStatus{}, err
		}
		c.BackAndForth.ExpectedMessageBack = env.State.ExpectedMessageBack
	}
	return c, nil
}
