package storage

import (
	"context"
	"errors"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// ErrNotFound keeps storage-level 404s consistent across the in-memory and
// postgres implementations.
var ErrNotFound = errors.New("record not found")

// IdentityStore durably persists identity state keyed by network address. The
// manager treats it as a crash-consistent key-value-by-address store; the only
// semantic it relies on is read-your-writes after a successful write.
type IdentityStore interface {
	Upsert(ctx context.Context, state domain.IdentityState) error
	Find(ctx context.Context, addr domain.NetworkAddress) (domain.IdentityState, error)
	List(ctx context.Context) ([]domain.IdentityState, error)
	UpdateField(ctx context.Context, addr domain.NetworkAddress, status domain.FieldStatus) error
	Delete(ctx context.Context, addr domain.NetworkAddress) error
}

// RoomStore is the auxiliary key/value lookup used to route outbound chat
// traffic: which chat room belongs to which address.
type RoomStore interface {
	SaveRoom(ctx context.Context, addr domain.NetworkAddress, roomID string) error
	FindRoom(ctx context.Context, addr domain.NetworkAddress) (string, error)
	DeleteRoom(ctx context.Context, addr domain.NetworkAddress) error
}
