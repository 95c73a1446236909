package domain

// OnChainChallenge is the remark text an account is expected to publish
// on-chain once its identity is fully verified.
type OnChainChallenge string

// RemarkFound is an observed on-chain remark reported by the watcher.
type RemarkFound struct {
	Address NetworkAddress `json:"net_address"`
	Remark  string         `json:"remark"`
}

// MatchesRemark reports whether the observed remark satisfies the challenge.
// The comparison is exact; the watcher delivers the remark payload verbatim.
func (c OnChainChallenge) MatchesRemark(found RemarkFound) bool {
	return c != "" && string(c) == found.Remark
}
