package domain

// FieldStatus pairs a claimed field with its challenge progress and whether
// the network configuration permits the field kind at all.
type FieldStatus struct {
	Field       IdentityField   `json:"field"`
	IsPermitted bool            `json:"is_permitted"`
	Challenge   ChallengeStatus `json:"challenge"`
}

// IsValid reports whether the field's challenge has fully succeeded.
// Placeholder fields never become valid; they also never count toward the
// verification requirement (see IdentityState.FullyVerified).
func (s FieldStatus) IsValid() bool {
	if s.Field.Placeholder() {
		return false
	}
	return s.Challenge.Valid()
}

func (s FieldStatus) Clone() FieldStatus {
	s.Challenge = s.Challenge.Clone()
	return s
}

// IdentityState is one identity under judgement: the on-chain account, its
// claimed fields with their challenge progress, and the remark token the
// account must publish on-chain to complete judgement. Field kinds are unique
// within an identity.
type IdentityState struct {
	Address          NetworkAddress   `json:"net_address"`
	Fields           []FieldStatus    `json:"fields"`
	OnChainChallenge OnChainChallenge `json:"on_chain_challenge"`
}

// FieldByKind returns a pointer to the status entry for the given kind.
func (s *IdentityState) FieldByKind(kind FieldKind) (*FieldStatus, bool) {
	for i := range s.Fields {
		if s.Fields[i].Field.Kind == kind {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// FullyVerified reports whether every non-placeholder field is valid. An
// identity with only placeholder fields has nothing to verify and counts as
// not fully verified, since no challenge was ever passed.
func (s IdentityState) FullyVerified() bool {
	checked := false
	for _, status := range s.Fields {
		if status.Field.Placeholder() {
			continue
		}
		if !status.IsValid() {
			return false
		}
		checked = true
	}
	return checked
}

// Clone returns a deep copy; lookup paths hand these out so callers never
// hold references into manager-owned state.
func (s IdentityState) Clone() IdentityState {
	fields := make([]FieldStatus, 0, len(s.Fields))
	for _, f := range s.Fields {
		fields = append(fields, f.Clone())
	}
	return IdentityState{Address: s.Address, Fields: fields, OnChainChallenge: s.OnChainChallenge}
}

// VerificationOutcome is the result of evaluating one inbound proof against
// one address claiming the field. Verified is the explicit discriminant;
// FieldStatus carries the evaluated state for callers that need detail.
type VerificationOutcome struct {
	Address     NetworkAddress `json:"net_address"`
	FieldStatus FieldStatus    `json:"field_status"`
	Verified    bool           `json:"verified"`
}
