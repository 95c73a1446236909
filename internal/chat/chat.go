package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/storage"
)

// Sender delivers a challenge to the account that claims a field.
type Sender interface {
	SendChallenge(ctx context.Context, addr domain.NetworkAddress, field domain.IdentityField, message domain.ExpectedMessage) error
}

// Messenger is the raw chat transport: open a direct room with a handle and
// post into a room. Implemented against the homeserver client; tests use a
// fake.
type Messenger interface {
	CreateDirectRoom(ctx context.Context, handle string) (roomID string, err error)
	SendMessage(ctx context.Context, roomID, body string) error
}

// Verifier is the slice of the verification service inbound messages feed.
type Verifier interface {
	HandleMessage(ctx context.Context, field domain.IdentityField, message domain.ProvidedMessage) ([]domain.VerificationOutcome, error)
}

// Service routes challenges out through chat rooms and inbound room traffic
// back into verification. Room assignments persist in the room store so a
// restart keeps addressing the same rooms.
type Service struct {
	messenger Messenger
	rooms     storage.RoomStore
	verifier  Verifier
	logger    *slog.Logger
}

func New(messenger Messenger, rooms storage.RoomStore, verifier Verifier, logger *slog.Logger) *Service {
	return &Service{
		messenger: messenger,
		rooms:     rooms,
		verifier:  verifier,
		logger:    logger,
	}
}

// SendChallenge opens (or reuses) the direct room for the claiming account
// and posts the challenge text there.
func (s *Service) SendChallenge(ctx context.Context, addr domain.NetworkAddress, field domain.IdentityField, message domain.ExpectedMessage) error {
	roomID, err := s.rooms.FindRoom(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		roomID, err = s.messenger.CreateDirectRoom(ctx, string(field.Address))
		if err != nil {
			return fmt.Errorf("create room for %s: %w", field.Address, err)
		}
		if err := s.rooms.SaveRoom(ctx, addr, roomID); err != nil {
			return fmt.Errorf("save room for %s: %w", field.Address, err)
		}
	} else if err != nil {
		return fmt.Errorf("find room for %s: %w", field.Address, err)
	}

	body := fmt.Sprintf("Please reply with the following challenge to verify your %s account: %s",
		field.Kind, message)
	if err := s.messenger.SendMessage(ctx, roomID, body); err != nil {
		return fmt.Errorf("send challenge to %s: %w", field.Address, err)
	}
	s.logger.Info("challenge sent",
		slog.String("kind", string(field.Kind)),
		slog.String("handle", string(field.Address)),
		slog.String("room", roomID))
	return nil
}

// HandleIncoming feeds a chat message from a claimed handle into
// verification and reports the outcomes back into the room.
func (s *Service) HandleIncoming(ctx context.Context, roomID, sender, body string) error {
	field := domain.NewIdentityField(domain.FieldMatrix, domain.FieldAddress(sender))
	outcomes, err := s.verifier.HandleMessage(ctx, field, domain.NewProvidedMessage(body))
	if err != nil {
		return err
	}

	for _, outcome := range outcomes {
		reply := "The challenge did not match, please check the message and try again."
		if outcome.Verified {
			reply = fmt.Sprintf("Verification of your %s account succeeded.", field.Kind)
		}
		if err := s.messenger.SendMessage(ctx, roomID, reply); err != nil {
			s.logger.Error("sending verification reply",
				slog.String("room", roomID), slog.Any("error", err))
		}
	}
	return nil
}
