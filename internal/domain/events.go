package domain

// EventKind tags the domain events published on the bus and appended to the
// event log. The correlator's fold switches exhaustively on these.
type EventKind string

const (
	EventIdentityInserted      EventKind = "identity_inserted"
	EventFieldUpdated          EventKind = "field_updated"
	EventIdentityFullyVerified EventKind = "identity_fully_verified"
	EventRemarkFound           EventKind = "remark_found"
	EventJudgementGiven        EventKind = "judgement_given"
)

// Event is a fact about one address. Events for a given address must be
// applied in production order; ordering across addresses is irrelevant.
type Event interface {
	EventKind() EventKind
	EventAddress() NetworkAddress
}

// IdentityInserted records intake of a new identity claim.
type IdentityInserted struct {
	State IdentityState `json:"state"`
}

func (e IdentityInserted) EventKind() EventKind         { return EventIdentityInserted }
func (e IdentityInserted) EventAddress() NetworkAddress { return e.State.Address }

// FieldUpdated records a replaced field status on an existing identity.
type FieldUpdated struct {
	Address NetworkAddress `json:"net_address"`
	Field   IdentityField  `json:"field"`
}

func (e FieldUpdated) EventKind() EventKind         { return EventFieldUpdated }
func (e FieldUpdated) EventAddress() NetworkAddress { return e.Address }

// IdentityFullyVerified records that every required field of the identity has
// passed its challenge; Challenge is the remark now awaited on-chain.
type IdentityFullyVerified struct {
	Address   NetworkAddress   `json:"net_address"`
	Challenge OnChainChallenge `json:"on_chain_challenge"`
}

func (e IdentityFullyVerified) EventKind() EventKind         { return EventIdentityFullyVerified }
func (e IdentityFullyVerified) EventAddress() NetworkAddress { return e.Address }

func (f RemarkFound) EventKind() EventKind         { return EventRemarkFound }
func (f RemarkFound) EventAddress() NetworkAddress { return f.Address }

// JudgementGiven records the terminal on-chain judgement for an address.
type JudgementGiven struct {
	Address NetworkAddress `json:"net_address"`
}

func (e JudgementGiven) EventKind() EventKind         { return EventJudgementGiven }
func (e JudgementGiven) EventAddress() NetworkAddress { return e.Address }
