package verifier

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/events"
	"github.com/w3f/polkadot-registrar-bot/internal/identity"
	"github.com/w3f/polkadot-registrar-bot/internal/notify"
	"github.com/w3f/polkadot-registrar-bot/internal/storage"
)

type VerifierSuite struct {
	suite.Suite
	manager *identity.Manager
	hub     *notify.Hub
	service *Service
	ctx     context.Context
	addr    domain.NetworkAddress
	field   domain.IdentityField
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	bus := events.NewBus(logger)
	s.manager = identity.NewManager(storage.NewInMemoryIdentityStore(), bus, logger)
	s.hub = notify.NewHub(logger)
	s.service = New(s.manager, s.hub, logger)
	s.ctx = context.Background()

	s.addr = domain.NewPolkadotAddress("15MUBwP6dyVw5CXF9PjSSv7SdXQuDSwjX86v1kBodCSWVR7cw")
	s.field = domain.NewIdentityField(domain.FieldMatrix, "@alice:matrix.org")
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, domain.IdentityState{
		Address: s.addr,
		Fields: []domain.FieldStatus{{
			Field:       s.field,
			IsPermitted: true,
			Challenge: domain.NewExpectMessageChallenge(domain.ExpectMessageChallenge{
				ExpectedMessage: "1127233905",
				From:            s.field,
				To:              domain.NewIdentityField(domain.FieldMatrix, "@registrar:matrix.org"),
				Status:          domain.Unconfirmed,
			}),
		}},
		OnChainChallenge: "1127233905",
	}))
}

func (s *VerifierSuite) TestMatchingMessageConfirms() {
	sessions, cancel := s.hub.Subscribe(s.addr, 4)
	defer cancel()

	outcomes, err := s.service.HandleMessage(s.ctx, s.field,
		domain.NewProvidedMessage("hello", "1127233905"))
	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.True(outcomes[0].Verified)

	verified, err := s.manager.IsFullyVerified(s.addr)
	s.Require().NoError(err)
	s.True(verified)

	s.Require().Len(sessions, 1)
	notification := <-sessions
	s.Equal(notify.KindVerification, notification.Kind)
	s.True(notification.Outcome.Verified)
}

func (s *VerifierSuite) TestWrongMessageReportsFailure() {
	sessions, cancel := s.hub.Subscribe(s.addr, 4)
	defer cancel()

	outcomes, err := s.service.HandleMessage(s.ctx, s.field,
		domain.NewProvidedMessage("wrong"))
	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.False(outcomes[0].Verified)

	verified, err := s.manager.IsFullyVerified(s.addr)
	s.Require().NoError(err)
	s.False(verified)

	s.Require().Len(sessions, 1)
	s.False((<-sessions).Outcome.Verified)
}

func (s *VerifierSuite) TestUnknownFieldNoOutcomes() {
	outcomes, err := s.service.HandleMessage(s.ctx,
		domain.NewIdentityField(domain.FieldMatrix, "@mallory:matrix.org"),
		domain.NewProvidedMessage("1127233905"))
	s.Require().NoError(err)
	s.Empty(outcomes)
}
