package storage

import (
	"context"
	"sync"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// In-memory stores back tests and single-process runs without external
// services. They intentionally favor clarity over performance.
type InMemoryIdentityStore struct {
	mu         sync.RWMutex
	identities map[domain.NetworkAddress]domain.IdentityState
}

func NewInMemoryIdentityStore() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{identities: make(map[domain.NetworkAddress]domain.IdentityState)}
}

func (s *InMemoryIdentityStore) Upsert(_ context.Context, state domain.IdentityState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[state.Address] = state.Clone()
	return nil
}

func (s *InMemoryIdentityStore) Find(_ context.Context, addr domain.NetworkAddress) (domain.IdentityState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.identities[addr]; ok {
		return state.Clone(), nil
	}
	return domain.IdentityState{}, ErrNotFound
}

func (s *InMemoryIdentityStore) List(_ context.Context) ([]domain.IdentityState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.IdentityState, 0, len(s.identities))
	for _, state := range s.identities {
		out = append(out, state.Clone())
	}
	return out, nil
}

func (s *InMemoryIdentityStore) UpdateField(_ context.Context, addr domain.NetworkAddress, status domain.FieldStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.identities[addr]
	if !ok {
		return ErrNotFound
	}
	target, ok := state.FieldByKind(status.Field.Kind)
	if !ok {
		return ErrNotFound
	}
	*target = status.Clone()
	s.identities[addr] = state
	return nil
}

func (s *InMemoryIdentityStore) Delete(_ context.Context, addr domain.NetworkAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.identities, addr)
	return nil
}

type InMemoryRoomStore struct {
	mu    sync.RWMutex
	rooms map[domain.NetworkAddress]string
}

func NewInMemoryRoomStore() *InMemoryRoomStore {
	return &InMemoryRoomStore{rooms: make(map[domain.NetworkAddress]string)}
}

func (s *InMemoryRoomStore) SaveRoom(_ context.Context, addr domain.NetworkAddress, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[addr] = roomID
	return nil
}

func (s *InMemoryRoomStore) FindRoom(_ context.Context, addr domain.NetworkAddress) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if room, ok := s.rooms[addr]; ok {
		return room, nil
	}
	return "", ErrNotFound
}

func (s *InMemoryRoomStore) DeleteRoom(_ context.Context, addr domain.NetworkAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, addr)
	return nil
}
