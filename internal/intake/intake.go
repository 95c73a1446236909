package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/w3f/polkadot-registrar-bot/internal/challenge"
	"github.com/w3f/polkadot-registrar-bot/internal/displayname"
	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// Claim is an on-chain identity claim as delivered by the watcher: the
// account plus the raw field values it asserts.
type Claim struct {
	Address domain.NetworkAddress  `json:"net_address"`
	Fields  []domain.IdentityField `json:"fields"`
}

// Config names the registrar-side accounts proofs are exchanged with and
// which field kinds the network permits.
type Config struct {
	RegistrarMatrix  domain.IdentityField
	RegistrarEmail   domain.IdentityField
	RegistrarTwitter domain.IdentityField
	Permitted        map[domain.FieldKind]bool
}

// Manager is the slice of the identity manager intake drives.
type Manager interface {
	InsertIdentity(ctx context.Context, state domain.IdentityState) error
	DisplayNames() []domain.DisplayName
}

// ChallengeSender relays a generated challenge out to the claiming account.
// Satisfied by the chat service; nil disables outbound delivery.
type ChallengeSender interface {
	SendChallenge(ctx context.Context, addr domain.NetworkAddress, field domain.IdentityField, message domain.ExpectedMessage) error
}

// Service turns claims into identity state: one challenge per claimed field,
// a fresh on-chain remark token, and registration with the manager.
type Service struct {
	cfg     Config
	manager Manager
	sender  ChallengeSender
	logger  *slog.Logger
}

func New(cfg Config, manager Manager, sender ChallengeSender, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, manager: manager, sender: sender, logger: logger}
}

// HandleClaim builds challenges for every claimed field and registers the
// identity. The built state is returned so the caller can relay challenge
// texts outward.
func (s *Service) HandleClaim(ctx context.Context, claim Claim) (domain.IdentityState, error) {
	state := domain.IdentityState{Address: claim.Address}

	onChain, err := challenge.NewOnChainChallenge()
	if err != nil {
		return domain.IdentityState{}, err
	}
	state.OnChainChallenge = onChain

	for _, field := range claim.Fields {
		status, err := s.buildStatus(field)
		if err != nil {
			return domain.IdentityState{}, err
		}
		state.Fields = append(state.Fields, status)
	}

	if err := s.manager.InsertIdentity(ctx, state); err != nil {
		return domain.IdentityState{}, err
	}
	s.relayChallenges(ctx, state)
	return state, nil
}

// relayChallenges sends the generated tokens out. Delivery failures are
// logged, not fatal: the claimant can always ask for a resend while the
// stored challenge stays authoritative.
func (s *Service) relayChallenges(ctx context.Context, state domain.IdentityState) {
	if s.sender == nil {
		return
	}
	for _, status := range state.Fields {
		if status.Field.Placeholder() {
			continue
		}
		token, ok := status.Challenge.ExpectedToken()
		if !ok {
			continue
		}
		if err := s.sender.SendChallenge(ctx, state.Address, status.Field, token); err != nil {
			s.logger.Error("relaying challenge",
				slog.String("address", state.Address.String()),
				slog.String("field", string(status.Field.Kind)),
				slog.Any("error", err))
		}
	}
}

func (s *Service) buildStatus(field domain.IdentityField) (domain.FieldStatus, error) {
	status := domain.FieldStatus{
		Field:       field,
		IsPermitted: s.permitted(field.Kind),
	}

	switch field.Kind {
	case domain.FieldDisplayName:
		check := displayname.Check(domain.DisplayName(field.Address), s.manager.DisplayNames())
		status.Challenge = domain.NewCheckDisplayNameChallenge(check)

	case domain.FieldEmail:
		token, err := challenge.NewToken()
		if err != nil {
			return domain.FieldStatus{}, err
		}
		back, err := challenge.NewToken()
		if err != nil {
			return domain.FieldStatus{}, err
		}
		status.Challenge = domain.NewBackAndForthChallenge(domain.BackAndForthChallenge{
			ExpectedMessage:     token,
			ExpectedMessageBack: back,
			From:                field,
			To:                  s.cfg.RegistrarEmail,
			FirstCheckStatus:    domain.Unconfirmed,
			SecondCheckStatus:   domain.Unconfirmed,
		})

	case domain.FieldImage, domain.FieldAdditional:
		// Placeholders are accepted in the schema but never challenged.
		status.IsPermitted = false
		status.Challenge = domain.NewCheckDisplayNameChallenge(domain.CheckDisplayNameChallenge{
			Status: domain.Unconfirmed,
		})

	default:
		// Every other kind proves control by relaying a token back through
		// the claimed channel.
		token, err := challenge.NewToken()
		if err != nil {
			return domain.FieldStatus{}, err
		}
		status.Challenge = domain.NewExpectMessageChallenge(domain.ExpectMessageChallenge{
			ExpectedMessage: token,
			From:            field,
			To:              s.registrarAccount(field.Kind),
			Status:          domain.Unconfirmed,
		})
	}
	return status, nil
}

func (s *Service) permitted(kind domain.FieldKind) bool {
	if s.cfg.Permitted == nil {
		return true
	}
	return s.cfg.Permitted[kind]
}

func (s *Service) registrarAccount(kind domain.FieldKind) domain.IdentityField {
	switch kind {
	case domain.FieldMatrix:
		return s.cfg.RegistrarMatrix
	case domain.FieldTwitter:
		return s.cfg.RegistrarTwitter
	case domain.FieldEmail:
		return s.cfg.RegistrarEmail
	}
	return s.cfg.RegistrarMatrix
}

// String keeps claim logging uniform without dumping field values.
func (c Claim) String() string {
	return fmt.Sprintf("claim{%s, %d fields}", c.Address, len(c.Fields))
}
