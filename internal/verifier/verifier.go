package verifier

import (
	"context"
	"log/slog"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/notify"
)

// Manager is the slice of the identity manager the verifier drives.
type Manager interface {
	VerifyMessage(ctx context.Context, field domain.IdentityField, message domain.ProvidedMessage) []domain.VerificationOutcome
	SetVerified(ctx context.Context, addr domain.NetworkAddress, field domain.IdentityField) (bool, error)
}

// Service turns inbound chat messages into validity transitions: it routes
// the proof through the manager, confirms every matched outcome, and notifies
// watching sessions either way. Transports own message decoding; they hand
// this service the claimed field plus the message parts as delivered.
type Service struct {
	manager Manager
	hub     *notify.Hub
	logger  *slog.Logger
}

func New(manager Manager, hub *notify.Hub, logger *slog.Logger) *Service {
	return &Service{manager: manager, hub: hub, logger: logger}
}

// HandleMessage processes one inbound proof and returns the evaluated
// outcomes. A failed match is an unsuccessful outcome, not an error, so the
// claimant can retry with a corrected message.
func (s *Service) HandleMessage(ctx context.Context, field domain.IdentityField, message domain.ProvidedMessage) ([]domain.VerificationOutcome, error) {
	outcomes := s.manager.VerifyMessage(ctx, field, message)
	for _, outcome := range outcomes {
		if outcome.Verified {
			found, err := s.manager.SetVerified(ctx, outcome.Address, field)
			if err != nil {
				return nil, err
			}
			if !found {
				// The identity disappeared between routing and confirmation;
				// nothing to confirm.
				s.logger.Warn("verified field vanished before confirmation",
					"address", outcome.Address.String(), "field", field.Kind)
				continue
			}
		}
		outcome := outcome
		s.hub.Publish(notify.Notification{
			Kind:    notify.KindVerification,
			Address: outcome.Address,
			Outcome: &outcome,
		})
	}
	return outcomes, nil
}
