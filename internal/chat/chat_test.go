package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/events"
	"github.com/w3f/polkadot-registrar-bot/internal/identity"
	"github.com/w3f/polkadot-registrar-bot/internal/notify"
	"github.com/w3f/polkadot-registrar-bot/internal/storage"
	"github.com/w3f/polkadot-registrar-bot/internal/verifier"
)

type fakeMessenger struct {
	roomCounter int
	created     []string
	sent        map[string][]string
	failCreate  bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sent: make(map[string][]string)}
}

func (f *fakeMessenger) CreateDirectRoom(_ context.Context, handle string) (string, error) {
	if f.failCreate {
		return "", errors.New("homeserver unavailable")
	}
	f.roomCounter++
	roomID := "!room-" + handle
	f.created = append(f.created, roomID)
	return roomID, nil
}

func (f *fakeMessenger) SendMessage(_ context.Context, roomID, body string) error {
	f.sent[roomID] = append(f.sent[roomID], body)
	return nil
}

type ChatSuite struct {
	suite.Suite
	ctx       context.Context
	messenger *fakeMessenger
	manager   *identity.Manager
	svc       *Service
	alice     domain.NetworkAddress
	token     domain.ExpectedMessage
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, new(ChatSuite))
}

func (s *ChatSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(logger)
	s.manager = identity.NewManager(storage.NewInMemoryIdentityStore(), bus, logger)
	s.messenger = newFakeMessenger()
	hub := notify.NewHub(logger)
	s.svc = New(s.messenger, storage.NewInMemoryRoomStore(), verifier.New(s.manager, hub, logger), logger)

	s.alice = domain.NewPolkadotAddress("15MUBwP6dyVw5CXF9PjSSv7SdXQuDSwjX86v1kBodCSWVR7cw")
	s.token = "1127233905"
	state := domain.IdentityState{
		Address: s.alice,
		Fields: []domain.FieldStatus{{
			Field:       domain.NewIdentityField(domain.FieldMatrix, "@alice:matrix.org"),
			IsPermitted: true,
			Challenge: domain.NewExpectMessageChallenge(domain.ExpectMessageChallenge{
				ExpectedMessage: s.token,
				From:            domain.NewIdentityField(domain.FieldMatrix, "@alice:matrix.org"),
				To:              domain.NewIdentityField(domain.FieldMatrix, "@registrar:web3.foundation"),
				Status:          domain.Unconfirmed,
			}),
		}},
	}
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, state))
}

func (s *ChatSuite) matrixField() domain.IdentityField {
	return domain.NewIdentityField(domain.FieldMatrix, "@alice:matrix.org")
}

func (s *ChatSuite) TestSendChallengeCreatesRoomOnce() {
	s.Require().NoError(s.svc.SendChallenge(s.ctx, s.alice, s.matrixField(), s.token))
	s.Require().NoError(s.svc.SendChallenge(s.ctx, s.alice, s.matrixField(), s.token))

	s.Len(s.messenger.created, 1)
	roomID := s.messenger.created[0]
	s.Require().Len(s.messenger.sent[roomID], 2)
	s.Contains(s.messenger.sent[roomID][0], string(s.token))
}

func (s *ChatSuite) TestSendChallengeCreateRoomFails() {
	s.messenger.failCreate = true
	err := s.svc.SendChallenge(s.ctx, s.alice, s.matrixField(), s.token)
	s.Error(err)
}

func (s *ChatSuite) TestIncomingMatchingMessageVerifies() {
	s.Require().NoError(s.svc.SendChallenge(s.ctx, s.alice, s.matrixField(), s.token))
	roomID := s.messenger.created[0]

	err := s.svc.HandleIncoming(s.ctx, roomID, "@alice:matrix.org", "here you go: "+string(s.token))
	s.Require().NoError(err)

	verified, err := s.manager.IsFullyVerified(s.alice)
	s.Require().NoError(err)
	s.True(verified)

	replies := s.messenger.sent[roomID]
	s.Require().NotEmpty(replies)
	s.Contains(replies[len(replies)-1], "succeeded")
}

func (s *ChatSuite) TestIncomingWrongTokenReportsFailure() {
	s.Require().NoError(s.svc.SendChallenge(s.ctx, s.alice, s.matrixField(), s.token))
	roomID := s.messenger.created[0]

	err := s.svc.HandleIncoming(s.ctx, roomID, "@alice:matrix.org", "0000000000")
	s.Require().NoError(err)

	verified, err := s.manager.IsFullyVerified(s.alice)
	s.Require().NoError(err)
	s.False(verified)

	replies := s.messenger.sent[roomID]
	s.Require().NotEmpty(replies)
	s.Contains(replies[len(replies)-1], "did not match")
}

func (s *ChatSuite) TestIncomingFromUnknownHandleIsIgnored() {
	err := s.svc.HandleIncoming(s.ctx, "!room-x", "@mallory:matrix.org", "1127233905")
	s.Require().NoError(err)
	s.Empty(s.messenger.sent["!room-x"])
}
