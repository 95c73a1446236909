package challenge

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// Tokens are ten-digit decimal strings: unambiguous to relay over any chat
// or email channel and trivially embedded in an on-chain remark.
var tokenSpace = big.NewInt(10_000_000_000)

func token() (string, error) {
	n, err := rand.Int(rand.Reader, tokenSpace)
	if err != nil {
		return "", fmt.Errorf("generate challenge token: %w", err)
	}
	return fmt.Sprintf("%010d", n), nil
}

// NewToken generates the expected message of a field challenge.
func NewToken() (domain.ExpectedMessage, error) {
	t, err := token()
	return domain.ExpectedMessage(t), err
}

// NewOnChainChallenge generates the remark token awaited on-chain.
func NewOnChainChallenge() (domain.OnChainChallenge, error) {
	t, err := token()
	return domain.OnChainChallenge(t), err
}
