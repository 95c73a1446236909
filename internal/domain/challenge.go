package domain

import (
	"encoding/json"
	"fmt"
)

// ChallengeKind tags the variants of ChallengeStatus.
type ChallengeKind string

const (
	KindExpectMessage    ChallengeKind = "expect_message"
	KindBackAndForth     ChallengeKind = "back_and_forth"
	KindCheckDisplayName ChallengeKind = "display_name_check"
)

// ExpectMessageChallenge: a single inbound message from From to To must
// contain the expected token.
type ExpectMessageChallenge struct {
	ExpectedMessage ExpectedMessage `json:"expected_message"`
	From            IdentityField   `json:"from"`
	To              IdentityField   `json:"to"`
	Status          Validity        `json:"status"`
}

// BackAndForthChallenge: two sequential proofs. The service sends
// ExpectedMessage, expects it echoed back (first check), then issues
// ExpectedMessageBack and expects that one too (second check).
type BackAndForthChallenge struct {
	ExpectedMessage ExpectedMessage `json:"expected_message"`
	// Never serialized. The reply token must reach the claimant only through
	// the From channel; exposing it over a read path would let anyone pass
	// the second check without controlling the account.
	ExpectedMessageBack ExpectedMessage `json:"-"`
	From                IdentityField   `json:"from"`
	To                  IdentityField   `json:"to"`
	FirstCheckStatus    Validity        `json:"first_check_status"`
	SecondCheckStatus   Validity        `json:"second_check_status"`
}

// CheckDisplayNameChallenge: the display name is validated against the
// registrar-side similarity check. Similarities lists the near-duplicates
// that caused a rejection.
type CheckDisplayNameChallenge struct {
	Status       Validity      `json:"status"`
	Similarities []DisplayName `json:"similarities,omitempty"`
}

// DisplayName is a claimed human-readable name.
type DisplayName string

// ChallengeStatus is a closed union over the three challenge protocols.
// Exactly one variant pointer is set, matching Kind.
type ChallengeStatus struct {
	Kind             ChallengeKind
	ExpectMessage    *ExpectMessageChallenge
	BackAndForth     *BackAndForthChallenge
	CheckDisplayName *CheckDisplayNameChallenge
}

func NewExpectMessageChallenge(c ExpectMessageChallenge) ChallengeStatus {
	return ChallengeStatus{Kind: KindExpectMessage, ExpectMessage: &c}
}

func NewBackAndForthChallenge(c BackAndForthChallenge) ChallengeStatus {
	return ChallengeStatus{Kind: KindBackAndForth, BackAndForth: &c}
}

func NewCheckDisplayNameChallenge(c CheckDisplayNameChallenge) ChallengeStatus {
	return ChallengeStatus{Kind: KindCheckDisplayName, CheckDisplayName: &c}
}

// Valid applies the per-variant validity predicate: single status for
// ExpectMessage and CheckDisplayName, both checks for BackAndForth.
func (c ChallengeStatus) Valid() bool {
	switch c.Kind {
	case KindExpectMessage:
		return c.ExpectMessage.Status == Valid
	case KindBackAndForth:
		return c.BackAndForth.FirstCheckStatus == Valid &&
			c.BackAndForth.SecondCheckStatus == Valid
	case KindCheckDisplayName:
		return c.CheckDisplayName.Status == Valid
	}
	return false
}

// SetValidity sets the next pending check of the challenge. For BackAndForth
// the first check is resolved before the second.
func (c *ChallengeStatus) SetValidity(v Validity) {
	switch c.Kind {
	case KindExpectMessage:
		c.ExpectMessage.Status = v
	case KindBackAndForth:
		if c.BackAndForth.FirstCheckStatus != Valid {
			c.BackAndForth.FirstCheckStatus = v
		} else {
			c.BackAndForth.SecondCheckStatus = v
		}
	case KindCheckDisplayName:
		c.CheckDisplayName.Status = v
	}
}

// ExpectedToken returns the token an inbound proof must currently contain,
// if the challenge expects one at all.
func (c ChallengeStatus) ExpectedToken() (ExpectedMessage, bool) {
	switch c.Kind {
	case KindExpectMessage:
		return c.ExpectMessage.ExpectedMessage, true
	case KindBackAndForth:
		if c.BackAndForth.FirstCheckStatus == Valid {
			return c.BackAndForth.ExpectedMessageBack, true
		}
		return c.BackAndForth.ExpectedMessage, true
	}
	return "", false
}

// Clone returns a deep copy so snapshot reads never alias manager state.
func (c ChallengeStatus) Clone() ChallengeStatus {
	out := ChallengeStatus{Kind: c.Kind}
	switch c.Kind {
	case KindExpectMessage:
		v := *c.ExpectMessage
		out.ExpectMessage = &v
	case KindBackAndForth:
		v := *c.BackAndForth
		out.BackAndForth = &v
	case KindCheckDisplayName:
		v := *c.CheckDisplayName
		v.Similarities = append([]DisplayName(nil), c.CheckDisplayName.Similarities...)
		out.CheckDisplayName = &v
	}
	return out
}

// challengeEnvelope is the wire shape of the union: {"type": ..., "state": ...}.
type challengeEnvelope struct {
	Type  ChallengeKind   `json:"type"`
	State json.RawMessage `json:"state"`
}

func (c ChallengeStatus) MarshalJSON() ([]byte, error) {
	var state any
	switch c.Kind {
	case KindExpectMessage:
		state = c.ExpectMessage
	case KindBackAndForth:
		state = c.BackAndForth
	case KindCheckDisplayName:
		state = c.CheckDisplayName
	default:
		return nil, fmt.Errorf("unknown challenge kind %q", c.Kind)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(challengeEnvelope{Type: c.Kind, State: raw})
}

func (c *ChallengeStatus) UnmarshalJSON(data []byte) error {
	var env challengeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.Kind = env.Type
	c.ExpectMessage, c.BackAndForth, c.CheckDisplayName = nil, nil, nil
	switch env.Type {
	case KindExpectMessage:
		c.ExpectMessage = new(ExpectMessageChallenge)
		return json.Unmarshal(env.State, c.ExpectMessage)
	case KindBackAndForth:
		c.BackAndForth = new(BackAndForthChallenge)
		return json.Unmarshal(env.State, c.BackAndForth)
	case KindCheckDisplayName:
		c.CheckDisplayName = new(CheckDisplayNameChallenge)
		return json.Unmarshal(env.State, c.CheckDisplayName)
	}
	return fmt.Errorf("unknown challenge kind %q", env.Type)
}
