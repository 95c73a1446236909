package identity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/events"
	"github.com/w3f/polkadot-registrar-bot/internal/storage"
)

type ManagerSuite struct {
	suite.Suite
	manager *Manager
	store   *failableStore
	bus     *events.Bus
	sub     <-chan domain.Event
	ctx     context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.store = &failableStore{IdentityStore: storage.NewInMemoryIdentityStore()}
	s.bus = events.NewBus(logger)
	s.sub = s.bus.Subscribe(64)
	s.manager = NewManager(s.store, s.bus, logger)
	s.ctx = context.Background()
}

// failableStore lets tests fail the next write to assert that the manager
// leaves in-memory state untouched on storage errors.
type failableStore struct {
	storage.IdentityStore
	fail error
}

func (f *failableStore) Upsert(ctx context.Context, state domain.IdentityState) error {
	if f.fail != nil {
		return f.fail
	}
	return f.IdentityStore.Upsert(ctx, state)
}

func (f *failableStore) UpdateField(ctx context.Context, addr domain.NetworkAddress, status domain.FieldStatus) error {
	if f.fail != nil {
		return f.fail
	}
	return f.IdentityStore.UpdateField(ctx, addr, status)
}

var (
	alice       = domain.NewPolkadotAddress("15MUBwP6dyVw5CXF9PjSSv7SdXQuDSwjX86v1kBodCSWVR7cw")
	bob         = domain.NewPolkadotAddress("14GcE4uBR6sWHsP6dyVw5CXF9PjSSv7SdXQuDSwjX86v1kBo")
	aliceMatrix = domain.NewIdentityField(domain.FieldMatrix, "@alice:matrix.org")
	registrarTo = domain.NewIdentityField(domain.FieldMatrix, "@registrar:matrix.org")
)

func expectMessage(field domain.IdentityField, token domain.ExpectedMessage) domain.FieldStatus {
	return domain.FieldStatus{
		Field:       field,
		IsPermitted: true,
		Challenge: domain.NewExpectMessageChallenge(domain.ExpectMessageChallenge{
			ExpectedMessage: token,
			From:            field,
			To:              registrarTo,
			Status:          domain.Unconfirmed,
		}),
	}
}

func aliceIdentity() domain.IdentityState {
	return domain.IdentityState{
		Address:          alice,
		Fields:           []domain.FieldStatus{expectMessage(aliceMatrix, "1127233905")},
		OnChainChallenge: "1127233905",
	}
}

func (s *ManagerSuite) drainEvents() []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-s.sub:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (s *ManagerSuite) TestInsertIdentity() {
	s.Run("insert and lookup", func() {
		s.Require().NoError(s.manager.InsertIdentity(s.ctx, aliceIdentity()))

		state, ok := s.manager.LookupFullState(alice)
		s.True(ok)
		s.Equal(alice, state.Address)
		s.Equal([]domain.NetworkAddress{alice}, s.manager.LookupAddresses(aliceMatrix))
	})

	s.Run("duplicate address rejected", func() {
		err := s.manager.InsertIdentity(s.ctx, aliceIdentity())
		s.ErrorIs(err, ErrDuplicateIdentity)
	})

	s.Run("duplicate field kinds rejected", func() {
		state := domain.IdentityState{
			Address: bob,
			Fields: []domain.FieldStatus{
				expectMessage(domain.NewIdentityField(domain.FieldMatrix, "@bob:matrix.org"), "1"),
				expectMessage(domain.NewIdentityField(domain.FieldMatrix, "@bob2:matrix.org"), "2"),
			},
		}
		s.Error(s.manager.InsertIdentity(s.ctx, state))
		_, ok := s.manager.LookupFullState(bob)
		s.False(ok)
	})

	s.Run("storage failure leaves no trace", func() {
		s.store.fail = errors.New("connection reset")
		defer func() { s.store.fail = nil }()

		state := aliceIdentity()
		state.Address = bob
		s.Error(s.manager.InsertIdentity(s.ctx, state))
		_, ok := s.manager.LookupFullState(bob)
		s.False(ok)
		s.Empty(s.manager.LookupAddresses(state.Fields[0].Field))
	})
}

func (s *ManagerSuite) TestUpdateField() {
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, aliceIdentity()))

	s.Run("unknown address", func() {
		err := s.manager.UpdateField(s.ctx, bob, expectMessage(aliceMatrix, "1"))
		s.ErrorIs(err, ErrAddressNotFound)
	})

	s.Run("unknown field kind leaves fields unchanged", func() {
		err := s.manager.UpdateField(s.ctx, alice,
			expectMessage(domain.NewIdentityField(domain.FieldEmail, "alice@email.com"), "1"))
		s.ErrorIs(err, ErrFieldNotFound)

		state, ok := s.manager.LookupFullState(alice)
		s.Require().True(ok)
		s.Len(state.Fields, 1)
		s.Equal(aliceMatrix, state.Fields[0].Field)
	})

	s.Run("replacing the field value reroutes the index", func() {
		renamed := domain.NewIdentityField(domain.FieldMatrix, "@alice2:matrix.org")
		s.Require().NoError(s.manager.UpdateField(s.ctx, alice, expectMessage(renamed, "1127233905")))

		s.Empty(s.manager.LookupAddresses(aliceMatrix))
		s.Equal([]domain.NetworkAddress{alice}, s.manager.LookupAddresses(renamed))
	})

	s.Run("storage failure leaves field unchanged", func() {
		s.store.fail = errors.New("connection reset")
		defer func() { s.store.fail = nil }()

		status := expectMessage(domain.NewIdentityField(domain.FieldMatrix, "@alice3:matrix.org"), "9")
		s.Error(s.manager.UpdateField(s.ctx, alice, status))
		s.Empty(s.manager.LookupAddresses(status.Field))
	})
}

func (s *ManagerSuite) TestVerifyMessage() {
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, aliceIdentity()))

	s.Run("matching message yields a verified outcome", func() {
		outcomes := s.manager.VerifyMessage(s.ctx, aliceMatrix,
			domain.NewProvidedMessage("hello", "1127233905"))
		s.Require().Len(outcomes, 1)
		s.True(outcomes[0].Verified)
		s.Equal(alice, outcomes[0].Address)
	})

	s.Run("wrong message yields an unverified outcome", func() {
		outcomes := s.manager.VerifyMessage(s.ctx, aliceMatrix,
			domain.NewProvidedMessage("wrong"))
		s.Require().Len(outcomes, 1)
		s.False(outcomes[0].Verified)
		s.Equal(domain.Unconfirmed, outcomes[0].FieldStatus.Challenge.ExpectMessage.Status)
	})

	s.Run("verify message never mutates state", func() {
		first := s.manager.VerifyMessage(s.ctx, aliceMatrix,
			domain.NewProvidedMessage("1127233905"))
		second := s.manager.VerifyMessage(s.ctx, aliceMatrix,
			domain.NewProvidedMessage("1127233905"))
		s.Equal(first, second)

		verified, err := s.manager.IsFullyVerified(alice)
		s.Require().NoError(err)
		s.False(verified)
	})

	s.Run("unclaimed field routes nowhere", func() {
		outcomes := s.manager.VerifyMessage(s.ctx,
			domain.NewIdentityField(domain.FieldMatrix, "@mallory:matrix.org"),
			domain.NewProvidedMessage("1127233905"))
		s.Empty(outcomes)
	})

	s.Run("already valid fields are skipped", func() {
		found, err := s.manager.SetVerified(s.ctx, alice, aliceMatrix)
		s.Require().NoError(err)
		s.True(found)

		outcomes := s.manager.VerifyMessage(s.ctx, aliceMatrix,
			domain.NewProvidedMessage("1127233905"))
		s.Empty(outcomes)
	})
}

func (s *ManagerSuite) TestSetVerifiedEmitsFullyVerified() {
	twitter := domain.NewIdentityField(domain.FieldTwitter, "@alice")
	state := domain.IdentityState{
		Address: alice,
		Fields: []domain.FieldStatus{
			expectMessage(aliceMatrix, "1127233905"),
			expectMessage(twitter, "5521428354"),
		},
		OnChainChallenge: "1127233905",
	}
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, state))
	s.drainEvents()

	found, err := s.manager.SetVerified(s.ctx, alice, aliceMatrix)
	s.Require().NoError(err)
	s.True(found)
	for _, ev := range s.drainEvents() {
		s.NotEqual(domain.EventIdentityFullyVerified, ev.EventKind())
	}

	found, err = s.manager.SetVerified(s.ctx, alice, twitter)
	s.Require().NoError(err)
	s.True(found)

	var sawFullyVerified bool
	for _, ev := range s.drainEvents() {
		if verified, ok := ev.(domain.IdentityFullyVerified); ok {
			sawFullyVerified = true
			s.Equal(alice, verified.Address)
			s.Equal(domain.OnChainChallenge("1127233905"), verified.Challenge)
		}
	}
	s.True(sawFullyVerified)

	verified, err := s.manager.IsFullyVerified(alice)
	s.Require().NoError(err)
	s.True(verified)
}

func (s *ManagerSuite) TestSetVerifiedMissing() {
	found, err := s.manager.SetVerified(s.ctx, alice, aliceMatrix)
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(s.manager.InsertIdentity(s.ctx, aliceIdentity()))
	found, err = s.manager.SetVerified(s.ctx, alice,
		domain.NewIdentityField(domain.FieldMatrix, "@someone-else:matrix.org"))
	s.Require().NoError(err)
	s.False(found)
}

func (s *ManagerSuite) TestIsFullyVerifiedUnknownAddress() {
	_, err := s.manager.IsFullyVerified(alice)
	s.ErrorIs(err, ErrAddressNotFound)
}

func (s *ManagerSuite) TestRemoveIdentity() {
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, aliceIdentity()))

	found, err := s.manager.RemoveIdentity(s.ctx, alice)
	s.Require().NoError(err)
	s.True(found)

	_, ok := s.manager.LookupFullState(alice)
	s.False(ok)
	s.Empty(s.manager.LookupAddresses(aliceMatrix))

	found, err = s.manager.RemoveIdentity(s.ctx, alice)
	s.Require().NoError(err)
	s.False(found)
}

// Reverse-index consistency: after an arbitrary sequence of inserts, updates
// and removals, every (field, address) pair in the table is in the index and
// nothing else is.
func (s *ManagerSuite) TestLoadHydratesFromStore() {
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, aliceIdentity()))

	// A second manager over the same store sees the identity after Load.
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	restarted := NewManager(s.store, events.NewBus(logger), logger)
	s.Require().NoError(restarted.Load(s.ctx))

	state, ok := restarted.LookupFullState(alice)
	s.Require().True(ok)
	s.Equal(alice, state.Address)
	s.Equal([]domain.NetworkAddress{alice}, restarted.LookupAddresses(aliceMatrix))
}

func (s *ManagerSuite) TestReverseIndexConsistency() {
	bobMatrix := domain.NewIdentityField(domain.FieldMatrix, "@alice:matrix.org") // same handle as alice
	bobState := domain.IdentityState{
		Address: bob,
		Fields: []domain.FieldStatus{
			expectMessage(bobMatrix, "9977553311"),
			expectMessage(domain.NewIdentityField(domain.FieldEmail, "bob@email.com"), "1188227744"),
		},
	}
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, aliceIdentity()))
	s.Require().NoError(s.manager.InsertIdentity(s.ctx, bobState))

	// Two identities claim the same matrix handle; both must route.
	s.ElementsMatch([]domain.NetworkAddress{alice, bob}, s.manager.LookupAddresses(aliceMatrix))

	outcomes := s.manager.VerifyMessage(s.ctx, aliceMatrix, domain.NewProvidedMessage("1127233905"))
	s.Len(outcomes, 2)

	_, err := s.manager.RemoveIdentity(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal([]domain.NetworkAddress{bob}, s.manager.LookupAddresses(aliceMatrix))

	s.Require().NoError(s.manager.UpdateField(s.ctx, bob,
		expectMessage(domain.NewIdentityField(domain.FieldEmail, "bob@web3.foundation"), "1188227744")))
	s.Empty(s.manager.LookupAddresses(domain.NewIdentityField(domain.FieldEmail, "bob@email.com")))
	s.Equal([]domain.NetworkAddress{bob},
		s.manager.LookupAddresses(domain.NewIdentityField(domain.FieldEmail, "bob@web3.foundation")))

	_, err = s.manager.RemoveIdentity(s.ctx, bob)
	s.Require().NoError(err)
	s.Empty(s.manager.LookupAddresses(aliceMatrix))
	s.Empty(s.manager.LookupAddresses(domain.NewIdentityField(domain.FieldEmail, "bob@web3.foundation")))
}
