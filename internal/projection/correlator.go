package projection

import (
	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// State is the minimal correlation state pairing "identity fully verified"
// with "remark observed on-chain", in either arrival order. For any address
// at most one of the two maps holds an entry: the handlers always consume the
// opposite map before storing into their own.
type State struct {
	// Remarks holds on-chain evidence seen before verification completed.
	Remarks map[domain.NetworkAddress]domain.RemarkFound
	// Pending holds the expected remark once verification completed before
	// the on-chain evidence arrived.
	Pending map[domain.NetworkAddress]domain.OnChainChallenge
}

func NewState() *State {
	return &State{
		Remarks: make(map[domain.NetworkAddress]domain.RemarkFound),
		Pending: make(map[domain.NetworkAddress]domain.OnChainChallenge),
	}
}

// Signal is an outcome the fold emits for downstream delivery. Delivery is
// fire-and-forget from the correlator's perspective.
type Signal interface {
	SignalAddress() domain.NetworkAddress
}

// JudgementReady: both halves of the pairing are present and the remark
// matches the challenge. The watcher turns this into an on-chain submission.
type JudgementReady struct {
	Address   domain.NetworkAddress
	Challenge domain.OnChainChallenge
	Remark    domain.RemarkFound
}

func (s JudgementReady) SignalAddress() domain.NetworkAddress { return s.Address }

// EvidenceMismatch: the observed remark did not match the expected challenge.
// A warning, not an error; the address stays correlatable by later evidence.
type EvidenceMismatch struct {
	Address  domain.NetworkAddress
	Expected domain.OnChainChallenge
	Got      string
}

func (s EvidenceMismatch) SignalAddress() domain.NetworkAddress { return s.Address }

// Apply folds one event into the state and returns the signals it produced.
// The fold is deterministic and free of I/O so restart is replay over the
// backlog. Judgement-ready is only ever emitted from a compare of two present
// halves, never speculatively.
//
// A mismatched remark does not clear Pending: one bad or duplicate remark
// must not block legitimate correlation later. Only JudgementGiven clears.
func Apply(state *State, ev domain.Event) []Signal {
	switch event := ev.(type) {
	case domain.IdentityFullyVerified:
		var signals []Signal
		// The remark rarely lands before verification completes, but the
		// challenge is readable over the API ahead of time, so it happens.
		if found, ok := state.Remarks[event.Address]; ok {
			delete(state.Remarks, event.Address)
			if event.Challenge.MatchesRemark(found) {
				signals = append(signals, JudgementReady{
					Address:   event.Address,
					Challenge: event.Challenge,
					Remark:    found,
				})
			} else {
				signals = append(signals, EvidenceMismatch{
					Address:  event.Address,
					Expected: event.Challenge,
					Got:      found.Remark,
				})
			}
		}
		state.Pending[event.Address] = event.Challenge
		return signals

	case domain.RemarkFound:
		if challenge, ok := state.Pending[event.Address]; ok {
			if challenge.MatchesRemark(event) {
				return []Signal{JudgementReady{
					Address:   event.Address,
					Challenge: challenge,
					Remark:    event,
				}}
			}
			return []Signal{EvidenceMismatch{
				Address:  event.Address,
				Expected: challenge,
				Got:      event.Remark,
			}}
		}
		state.Remarks[event.Address] = event
		return nil

	case domain.JudgementGiven:
		delete(state.Remarks, event.Address)
		delete(state.Pending, event.Address)
		return nil
	}

	// Other event kinds do not concern this projection.
	return nil
}
